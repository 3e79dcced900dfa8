package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/massmux/phoenixd-lnurl/internal/network"
	"github.com/massmux/phoenixd-lnurl/internal/nostr"
	log "github.com/sirupsen/logrus"
)

const DefaultTimeout = 5 * time.Second

// Publisher pushes signed events to nostr relays. Every relay gets its own
// short-lived connection: dial, send one EVENT frame, read at most one
// answer, close.
type Publisher struct {
	dialer  *websocket.Dialer
	timeout time.Duration
	extra   []string
	logger  log.FieldLogger
}

type Option func(p *Publisher)

func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithExtraRelays adds relays that receive every event on top of the ones
// the caller asks for.
func WithExtraRelays(relays []string) Option {
	return func(p *Publisher) {
		p.extra = relays
	}
}

func WithLogger(logger log.FieldLogger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithSocksProxy(socks *network.SocksProxy) Option {
	return func(p *Publisher) {
		dial, err := network.NewDialer(socks, p.timeout)
		if err != nil {
			p.logger.Errorf("[Relay] %v, dialing directly", err)
			return
		}
		p.dialer.NetDialContext = dial
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		timeout: DefaultTimeout,
		logger:  log.StandardLogger(),
	}
	p.dialer = &websocket.Dialer{HandshakeTimeout: p.timeout}
	for _, opt := range opts {
		opt(p)
	}
	p.dialer.HandshakeTimeout = p.timeout
	return p
}

// Report lists the outcome per relay. Failures are informational only.
type Report struct {
	Published []string
	Failed    map[string]error
}

// Publish fans the event out to relays concurrently and returns once every
// relay answered, failed or timed out.
func (p *Publisher) Publish(ctx context.Context, event *nostr.Event, relays []string) Report {
	relays = uniqueSlice(cleanUrls(append(append([]string{}, relays...), p.extra...)))
	report := Report{Failed: map[string]error{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, relayURL := range relays {
		wg.Add(1)
		go func(relayURL string) {
			defer wg.Done()
			err := p.publishOne(ctx, relayURL, event)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warnf("[Relay] %s: %v", relayURL, err)
				report.Failed[relayURL] = err
				return
			}
			report.Published = append(report.Published, relayURL)
		}(relayURL)
	}
	wg.Wait()
	p.logger.Infof("[Relay] Published event %s to %d/%d relays", event.ID, len(report.Published), len(relays))
	return report
}

func (p *Publisher) publishOne(ctx context.Context, relayURL string, event *nostr.Event) error {
	if err := checkURL(relayURL); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, _, err := p.dialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	p.logger.Debugf("[Relay] Connected %s", relayURL)

	deadline, _ := ctx.Deadline()
	// the deadline also unblocks the read below when the context ends early
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteJSON([]interface{}{"EVENT", event}); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	p.logger.Infof("[Relay] Response from %s: %s", relayURL, msg)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return nil
}

func checkURL(relayURL string) error {
	u, err := url.Parse(relayURL)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("not a websocket url")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func uniqueSlice(slice []string) []string {
	keys := make(map[string]bool)
	list := []string{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// cleanUrls trims whitespace and the trailing slash so that equal relays
// compare equal.
func cleanUrls(slice []string) []string {
	list := []string{}
	for _, entry := range slice {
		entry = strings.TrimSuffix(strings.TrimSpace(entry), "/")
		if entry == "" {
			continue
		}
		list = append(list, entry)
	}
	return list
}
