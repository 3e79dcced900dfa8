package zap

import (
	"context"
	"errors"
	"time"

	decodepay "github.com/fiatjaf/ln-decodepay"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	"github.com/massmux/phoenixd-lnurl/internal/nostr"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd"
	"github.com/massmux/phoenixd-lnurl/internal/relay"
	"github.com/massmux/phoenixd-lnurl/internal/runtime"
	"github.com/massmux/phoenixd-lnurl/internal/runtime/once"
	log "github.com/sirupsen/logrus"
)

const (
	StatusOk = "ok"
	// webhooks for one payment can arrive more than once
	publishGuardTTL = time.Hour
)

type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event, relays []string) relay.Report
}

type RequestLoader interface {
	Load(eventID string) (string, error)
}

// Result is the acknowledgement sent back to phoenixd.
type Result struct {
	Status  string       `json:"status"`
	Receipt *nostr.Event `json:"receipt,omitempty"`
}

// Reconciler turns settled zap invoices into signed zap receipts and hands
// them to the relays named in the zap request.
type Reconciler struct {
	invoicer       phoenixd.Invoicer
	keys           *nostr.Keypair
	store          RequestLoader
	publisher      Publisher
	tasks          *runtime.Tasks
	published      *once.Guard
	publishTimeout time.Duration
	logger         log.FieldLogger
}

type Option func(r *Reconciler)

func WithStore(store RequestLoader) Option {
	return func(r *Reconciler) {
		r.store = store
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		r.publishTimeout = d
	}
}

func WithLogger(logger log.FieldLogger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler wires the reconciler. keys is nil when zaps are disabled.
func NewReconciler(invoicer phoenixd.Invoicer, keys *nostr.Keypair, publisher Publisher, tasks *runtime.Tasks, opts ...Option) *Reconciler {
	r := &Reconciler{
		invoicer:       invoicer,
		keys:           keys,
		publisher:      publisher,
		tasks:          tasks,
		published:      once.New("zap-receipt", publishGuardTTL),
		publishTimeout: 3 * relay.DefaultTimeout,
		logger:         log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile handles one phoenixd webhook delivery.
func (r *Reconciler) Reconcile(ctx context.Context, hook phoenixd.WebhookEvent) (Result, error) {
	logger := r.logger.WithField("paymentHash", hook.PaymentHash)
	if hook.Type != phoenixd.PaymentReceived {
		logger.Debugf("[Webhook] Ignoring %q notification", hook.Type)
		return Result{Status: StatusOk}, nil
	}
	eventID, ok := EventID(hook.ExternalID)
	if !ok {
		logger.Debugf("[Webhook] Payment %q is not a zap", hook.ExternalID)
		return Result{Status: StatusOk}, nil
	}
	if r.keys == nil {
		err := zerrors.Newf(zerrors.InvariantViolationError, "Cannot handle zaps without nostr support")
		logger.WithField("externalId", hook.ExternalID).Errorf("[Webhook] %v", err)
		return Result{}, err
	}

	payment, err := r.invoicer.IncomingPayment(ctx, hook.PaymentHash)
	if err != nil {
		logger.Errorf("[Webhook] %v", err)
		return Result{}, err
	}
	if !payment.IsPaid {
		logger.Warnf("[Webhook] Payment is not paid yet")
		return Result{Status: StatusOk}, nil
	}

	raw, err := r.zapRequest(eventID, payment)
	if err != nil {
		logger.WithField("externalId", hook.ExternalID).Errorf("[Webhook] %v", err)
		return Result{Status: StatusOk}, nil
	}
	zr, err := nostr.ParseZapRequest(raw)
	if err != nil {
		err = zerrors.Wrap(zerrors.InvariantViolationError, "stored zap request is unreadable", err)
		logger.Errorf("[Webhook] %v", err)
		return Result{}, err
	}
	if zr.ID != eventID {
		logger.Warnf("[Webhook] externalId references %s but the zap request is %s", eventID, zr.ID)
	}
	r.checkInvoice(logger, payment.Invoice, zr)

	receipt, err := nostr.BuildZapReceipt(zr, nostr.PaidInvoice{
		Invoice:     payment.Invoice,
		Preimage:    payment.Preimage,
		Description: payment.Description,
		CompletedAt: payment.CompletedTime(),
	}, r.keys, logger)
	if err != nil {
		logger.Errorf("[Webhook] %v", err)
		return Result{}, err
	}
	logger.Debugf("[Webhook] Created zap receipt %s", receipt.ID)

	result := Result{Status: StatusOk, Receipt: receipt}
	r.publish(logger, hook.PaymentHash, receipt, zr.Relays())
	return result, nil
}

// zapRequest prefers the description stored with the invoice and falls back
// to the local copy for description hash invoices.
func (r *Reconciler) zapRequest(eventID string, payment phoenixd.IncomingPayment) (string, error) {
	if payment.Description != "" {
		return payment.Description, nil
	}
	if r.store == nil {
		return "", zerrors.Newf(zerrors.InvariantViolationError, "no description and no zap store for %s", eventID)
	}
	raw, err := r.store.Load(eventID)
	if errors.Is(err, ErrNotFound) {
		return "", zerrors.Newf(zerrors.InvariantViolationError, "zap request %s is neither in the invoice nor in the zap store", eventID)
	}
	if err != nil {
		return "", zerrors.Wrap(zerrors.InvariantViolationError, "could not load zap request", err)
	}
	return raw, nil
}

// checkInvoice warns when the paid invoice does not commit to the zap
// request.
func (r *Reconciler) checkInvoice(logger log.FieldLogger, invoice string, zr *nostr.ZapRequest) {
	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		logger.Debugf("[Webhook] Could not decode invoice: %v", err)
		return
	}
	if bolt11.DescriptionHash != zr.DescriptionHash() {
		logger.Warnf("[Webhook] Invoice description hash %q does not commit to zap request %s", bolt11.DescriptionHash, zr.ID)
	}
}

func (r *Reconciler) publish(logger log.FieldLogger, paymentHash string, receipt *nostr.Event, relays []string) {
	if r.publisher == nil || r.tasks == nil {
		logger.Warnf("[Webhook] No relay publisher configured, receipt %s not sent", receipt.ID)
		return
	}
	if err := r.published.Once(paymentHash); err != nil {
		logger.Infof("[Webhook] Receipt for this payment was already published")
		return
	}
	r.tasks.Go("zap-receipt "+receipt.ID, r.publishTimeout, func(ctx context.Context) error {
		report := r.publisher.Publish(ctx, receipt, relays)
		if len(report.Published) == 0 && len(report.Failed) > 0 {
			return zerrors.Newf(zerrors.PublishFailureError, "zap receipt %s reached no relay", receipt.ID)
		}
		return nil
	})
}
