package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/massmux/phoenixd-lnurl/internal"
	"github.com/massmux/phoenixd-lnurl/internal/api"
	"github.com/massmux/phoenixd-lnurl/internal/api/userpage"
	"github.com/massmux/phoenixd-lnurl/internal/lnurl"
	"github.com/massmux/phoenixd-lnurl/internal/network"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd/webhook"
	"github.com/massmux/phoenixd-lnurl/internal/rate"
	"github.com/massmux/phoenixd-lnurl/internal/relay"
	"github.com/massmux/phoenixd-lnurl/internal/runtime"
	"github.com/massmux/phoenixd-lnurl/internal/zap"
	log "github.com/sirupsen/logrus"
)

const (
	shutdownTimeout = 10 * time.Second
	// in-flight receipt publishes get this long to finish on shutdown
	drainTimeout = 15 * time.Second
)

// setLogger will initialize the log format
func setLogger(level log.Level) {
	log.SetLevel(level)
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)
}

func main() {
	setLogger(log.InfoLevel)
	defer withRecovery()

	config, err := internal.Load()
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	setLogger(config.Level())
	log.Debugf("[config] Loaded settings for %s@%s", config.Username, config.LnurlHostname)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, config); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, config *internal.Config) error {
	invoicer, err := newInvoicer(config)
	if err != nil {
		return err
	}
	store, err := zap.OpenStore(config.ZapStore.Path, config.ZapStore.Retention)
	if err != nil {
		return err
	}
	defer func() {
		runtime.IgnoreError(store.Close())
	}()

	keys := config.NostrKeys()
	var nostrPubkey string
	if keys != nil {
		nostrPubkey = keys.PublicKey
	} else {
		log.Infof("[config] No nostr identity configured, serving plain LNURL only")
	}

	tasks := runtime.NewTasks(nil)
	publisher := relay.NewPublisher(
		relay.WithTimeout(config.Relay.Timeout),
		relay.WithSocksProxy(config.Relay.SocksProxy),
		relay.WithExtraRelays(config.Nostr.Relays),
	)
	reconciler := zap.NewReconciler(invoicer, keys, publisher, tasks, zap.WithStore(store))

	lnUrl := lnurl.New(lnurl.Config{
		Username: config.Username,
		Hostname: config.LnurlHostname,
		MinSats:  config.MinSatsReceivable,
		MaxSats:  config.MaxSatsReceivable,
		Keys:     keys,
		Relays:   config.Nostr.Relays,
		Debug:    config.Debug,
	}, invoicer, lnurl.WithZapStore(store))

	splash, err := userpage.New(lnUrl, nostrPubkey, config.UserProfileImageURL, config.LnurlHostname)
	if err != nil {
		return err
	}
	limiter := rate.NewLimiter(config.RateLimit, rate.DefaultBurst)
	hook := webhook.New(reconciler, config.Phoenixd.WebhookSecret, config.Debug)

	s := api.NewServer(config.Listen)
	s.AppendRoute("/lnurl", splash.SplashHandler, http.MethodGet)
	s.AppendRoute("/lnurlp/{username}", lnUrl.HandlePayRequest, http.MethodGet)
	s.AppendRoute("/"+lnurl.Endpoint+"/{username}", lnUrl.HandlePayRequest, http.MethodGet)
	s.AppendLimitedRoute("/lnurlp/{username}/callback", limiter.Middleware, lnUrl.HandleCallbackRequest, http.MethodGet)
	s.AppendRoute("/.well-known/nostr.json", lnUrl.HandleNostrJSON, http.MethodGet)
	s.AppendRoute("/phoenixd-webhook", hook.Receive, http.MethodPost)

	errs := make(chan error, 1)
	go func() {
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[api] %v", err)
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := tasks.Wait(drainCtx); err != nil {
		log.Warnf("[Task] %v", err)
	}
	log.Infof("Shut down")
	return nil
}

func newInvoicer(config *internal.Config) (phoenixd.Invoicer, error) {
	if config.Phoenixd.Mock {
		log.Warnf("[phoenixd] Using the mock invoicer, payments are not real")
		return phoenixd.NewMockClient(nil), nil
	}
	base, password, err := config.PhoenixdEndpoint()
	if err != nil {
		return nil, err
	}
	client := network.GetClient(config.Phoenixd.SocksProxy, config.Phoenixd.Timeout)
	return phoenixd.NewClient(base, password, phoenixd.WithHTTPClient(client)), nil
}

func withRecovery() {
	if r := recover(); r != nil {
		log.Errorln("Recovered panic: ", r)
		debug.PrintStack()
	}
}
