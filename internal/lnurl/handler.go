package lnurl

import (
	"net/http"
	"strconv"

	"github.com/massmux/phoenixd-lnurl/internal/api"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
)

// HandlePayRequest serves both /lnurlp/{username} and
// /.well-known/lnurlp/{username}.
func (w *Lnurl) HandlePayRequest(writer http.ResponseWriter, request *http.Request) {
	username, ok := api.Username(writer, request)
	if !ok {
		return
	}
	response, err := w.PayParams(username)
	if err != nil {
		api.WriteError(writer, err, w.config.Debug)
		return
	}
	if err := api.WriteResponse(writer, response); err != nil {
		w.logger.Errorf("[LNURL] %v", err)
	}
}

func (w *Lnurl) HandleCallbackRequest(writer http.ResponseWriter, request *http.Request) {
	username, ok := api.Username(writer, request)
	if !ok {
		return
	}
	stringAmount := request.FormValue("amount")
	if stringAmount == "" {
		api.WriteError(writer, zerrors.Newf(zerrors.InvalidRequestError, "Form value 'amount' is not set"), w.config.Debug)
		return
	}
	amount, err := strconv.ParseInt(stringAmount, 10, 64)
	if err != nil {
		api.WriteError(writer, zerrors.Wrap(zerrors.InvalidRequestError, "amount must be an integer number of millisatoshis", err), w.config.Debug)
		return
	}
	response, err := w.HandleCallback(request.Context(), CallbackParams{
		Username:   username,
		AmountMsat: amount,
		Comment:    request.FormValue("comment"),
		Nostr:      request.FormValue("nostr"),
	})
	if err != nil {
		api.WriteError(writer, err, w.config.Debug)
		return
	}
	if err := api.WriteResponse(writer, response); err != nil {
		w.logger.Errorf("[LNURL] %v", err)
	}
}

// HandleNostrJSON serves the NIP-05 document at /.well-known/nostr.json.
func (w *Lnurl) HandleNostrJSON(writer http.ResponseWriter, request *http.Request) {
	response, ok := w.Nip05()
	if !ok {
		api.NotFound(writer, request)
		return
	}
	if err := api.WriteResponse(writer, response); err != nil {
		w.logger.Errorf("[NIP05] %v", err)
	}
}
