package lnurl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/fiatjaf/go-lnurl"
	"github.com/massmux/phoenixd-lnurl/internal/api"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	"github.com/massmux/phoenixd-lnurl/internal/nostr"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd"
	log "github.com/sirupsen/logrus"
)

const (
	PayRequestTag  = "payRequest"
	Endpoint       = ".well-known/lnurlp"
	CommentAllowed = 140
	// MaxCorn is every sat there will ever be.
	MaxCorn = 21_000_000 * 100_000_000
)

// Config describes the single recipient served by this instance.
type Config struct {
	Username string
	Hostname string
	MinSats  int64
	MaxSats  int64
	// Keys signs zap receipts. Zaps are disabled when nil.
	Keys   *nostr.Keypair
	Relays []string
	Debug  bool
}

// ZapStore keeps zap requests around for invoices that only carry their
// hash.
type ZapStore interface {
	Save(eventID, raw string) error
}

type Lnurl struct {
	config       Config
	invoicer     phoenixd.Invoicer
	store        ZapStore
	metadata     lnurl.Metadata
	metadataHash string
	logger       log.FieldLogger
}

type Option func(l *Lnurl)

func WithZapStore(store ZapStore) Option {
	return func(l *Lnurl) {
		l.store = store
	}
}

func WithLogger(logger log.FieldLogger) Option {
	return func(l *Lnurl) {
		l.logger = logger
	}
}

func New(config Config, invoicer phoenixd.Invoicer, opts ...Option) *Lnurl {
	if config.MinSats < 1 {
		config.MinSats = 1
	}
	if config.MaxSats == 0 {
		config.MaxSats = MaxCorn
	}
	l := &Lnurl{
		config:   config,
		invoicer: invoicer,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.metadata = metaData(config.Username, config.Hostname)
	l.metadataHash = DescriptionHash(l.metadata)
	return l
}

// SupportsZaps reports whether zap requests are honoured.
func (w *Lnurl) SupportsZaps() bool {
	return w.config.Keys != nil
}

func (w *Lnurl) Metadata() lnurl.Metadata {
	return w.metadata
}

// MetadataHash is the hex SHA256 of the encoded metadata. Plain LNURL
// invoices carry it as their description.
func (w *Lnurl) MetadataHash() string {
	return w.metadataHash
}

// BaseURL is where this service is reachable. LNURL requires https except
// for onion services.
func (w *Lnurl) BaseURL() *url.URL {
	scheme := "https"
	if strings.HasSuffix(strings.Split(w.config.Hostname, ":")[0], ".onion") {
		scheme = "http"
	}
	return &url.URL{Scheme: scheme, Host: w.config.Hostname}
}

func (w *Lnurl) Address() string {
	return fmt.Sprintf("%s@%s", w.config.Username, w.config.Hostname)
}

// PayRequestURL is the LUD-06 endpoint, the one encoded into the bech32
// LNURL.
func (w *Lnurl) PayRequestURL() string {
	return w.BaseURL().JoinPath("lnurlp", w.config.Username).String()
}

func (w *Lnurl) CallbackURL() string {
	return w.BaseURL().JoinPath("lnurlp", w.config.Username, "callback").String()
}

// EncodedLNURL is the bech32 LNURL of the pay request endpoint.
func (w *Lnurl) EncodedLNURL() (string, error) {
	return lnurl.LNURLEncode(w.PayRequestURL())
}

func (w *Lnurl) Username() string {
	return w.config.Username
}

func (w *Lnurl) checkUser(username string) error {
	if username != w.config.Username {
		return zerrors.ErrUnknownRecipient
	}
	return nil
}

// LNURLPayParamsCustom is go-lnurl's LNURLPayParams plus the NIP-57
// fields.
type LNURLPayParamsCustom struct {
	lnurl.LNURLResponse
	Callback        string `json:"callback"`
	Tag             string `json:"tag"`
	MaxSendable     int64  `json:"maxSendable"`
	MinSendable     int64  `json:"minSendable"`
	EncodedMetadata string `json:"metadata"`
	CommentAllowed  int64  `json:"commentAllowed"`
	AllowNostr      bool   `json:"allowsNostr,omitempty"`
	NostrPubKey     string `json:"nostrPubkey,omitempty"`
}

// PayParams serves the first step of LNURL-pay: where to call back and
// the metadata the invoice will commit to.
func (w *Lnurl) PayParams(username string) (*LNURLPayParamsCustom, error) {
	if err := w.checkUser(username); err != nil {
		return nil, err
	}
	w.logger.Infof("[LNURL] Serving endpoint for user %s", username)
	params := &LNURLPayParamsCustom{
		LNURLResponse:   lnurl.LNURLResponse{Status: api.StatusOk},
		Tag:             PayRequestTag,
		Callback:        w.CallbackURL(),
		MinSendable:     w.config.MinSats * 1000,
		MaxSendable:     w.config.MaxSats * 1000,
		EncodedMetadata: w.metadata.Encode(),
		CommentAllowed:  CommentAllowed,
	}
	if w.SupportsZaps() {
		params.AllowNostr = true
		params.NostrPubKey = w.config.Keys.PublicKey
	}
	return params, nil
}

// Nip05 returns the NIP-05 document, or false when there is no nostr
// identity or no relay to advertise.
func (w *Lnurl) Nip05() (nostr.Nip05Response, bool) {
	if w.config.Keys == nil || len(w.config.Relays) == 0 {
		return nostr.Nip05Response{}, false
	}
	return nostr.NewNip05Response(w.config.Username, w.config.Keys.PublicKey, w.config.Relays), true
}

// DescriptionHash is the SHA256 hash of the metadata
func DescriptionHash(metadata lnurl.Metadata) string {
	hash := sha256.Sum256([]byte(metadata.Encode()))
	return hex.EncodeToString(hash[:])
}

// metaData returns the metadata that is sent in the first response
// and is used again in the second response to build the description
func metaData(username, hostname string) lnurl.Metadata {
	return lnurl.Metadata{
		Description:      fmt.Sprintf("Zap %s some sats", username),
		LightningAddress: fmt.Sprintf("%s@%s", username, hostname),
	}
}
