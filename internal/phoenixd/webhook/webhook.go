package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/massmux/phoenixd-lnurl/internal/api"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd"
	"github.com/massmux/phoenixd-lnurl/internal/zap"
	log "github.com/sirupsen/logrus"
)

// phoenixd webhook bodies are a handful of fields
const maxBodySize = 64 << 10

type Reconciler interface {
	Reconcile(ctx context.Context, hook phoenixd.WebhookEvent) (zap.Result, error)
}

// Server receives the payment notifications phoenixd posts to its
// configured webhook url.
type Server struct {
	reconciler Reconciler
	secret     string
	debug      bool
}

// New returns the webhook receiver. With an empty secret deliveries are
// not authenticated.
func New(reconciler Reconciler, secret string, debug bool) *Server {
	if secret == "" {
		log.Warnf("[Webhook] No webhook secret configured, phoenixd notifications are not authenticated")
	}
	return &Server{reconciler: reconciler, secret: secret, debug: debug}
}

func (w *Server) Receive(writer http.ResponseWriter, request *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(writer, request.Body, maxBodySize))
	if err != nil {
		api.WriteError(writer, zerrors.Wrap(zerrors.InvalidRequestError, "could not read webhook body", err), w.debug)
		return
	}
	if w.secret != "" && !phoenixd.VerifySignature(body, w.secret, request.Header.Get(phoenixd.SignatureHeader)) {
		log.Warnf("[Webhook] Rejected notification from %s with a bad signature", api.ClientIP(request))
		api.WriteError(writer, zerrors.Newf(zerrors.UnauthorizedError, "invalid webhook signature"), w.debug)
		return
	}
	hook := phoenixd.WebhookEvent{}
	if err := json.Unmarshal(body, &hook); err != nil {
		api.WriteError(writer, zerrors.Wrap(zerrors.InvalidRequestError, "malformed webhook body", err), w.debug)
		return
	}
	log.Debugf("[Webhook] Notification from phoenixd: %+v", hook)

	result, err := w.reconciler.Reconcile(request.Context(), hook)
	if err != nil {
		api.WriteError(writer, err, w.debug)
		return
	}
	if err := api.WriteResponse(writer, result); err != nil {
		log.Errorf("[Webhook] %v", err)
	}
}
