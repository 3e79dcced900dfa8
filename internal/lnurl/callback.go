package lnurl

import (
	"context"
	"unicode/utf8"

	"github.com/fiatjaf/go-lnurl"
	"github.com/massmux/phoenixd-lnurl/internal/api"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	"github.com/massmux/phoenixd-lnurl/internal/nostr"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd"
	"github.com/massmux/phoenixd-lnurl/internal/zap"
)

const invalidZapPrefix = "Invalid NIP-57 Zap Request event: "

// CallbackParams are the query parameters of the second LNURL-pay step.
type CallbackParams struct {
	Username   string
	AmountMsat int64
	Comment    string
	// Nostr is the raw zap request, empty for plain LNURL payments.
	Nostr string
}

// HandleCallback serves the second LNURL response: an invoice for the
// requested amount, bound to the zap request when one was sent along.
func (w *Lnurl) HandleCallback(ctx context.Context, params CallbackParams) (*lnurl.LNURLPayValues, error) {
	if err := w.checkUser(params.Username); err != nil {
		return nil, err
	}
	if params.AmountMsat <= 0 {
		return nil, zerrors.Newf(zerrors.InvalidRequestError, "amount must be a positive number of millisatoshis")
	}
	if utf8.RuneCountInString(params.Comment) > CommentAllowed {
		return nil, zerrors.Newf(zerrors.CommentTooLongError, "Comment too long (max: %d characters)", CommentAllowed)
	}
	if params.Comment != "" {
		w.logger.Debugf("[LNURL] Raw comment: %q", params.Comment)
	}

	zapRequest, err := w.zapRequest(params)
	if err != nil {
		return nil, err
	}

	amountSat := MsatToSat(params.AmountMsat)
	w.logger.Infof("[LNURL] Serving invoice for user %s: %d sat (%d msat, zap: %t)",
		params.Username, amountSat, params.AmountMsat, zapRequest != nil)
	if amountSat < w.config.MinSats {
		w.logger.Warnf("[LNURL] Callback with too-low amount %d sats", amountSat)
		return nil, zerrors.Newf(zerrors.AmountOutOfBoundsError, "Amount is too low, minimum is %d sats", w.config.MinSats)
	}
	if amountSat > w.config.MaxSats {
		w.logger.Warnf("[LNURL] Callback with too-high amount %d sats", amountSat)
		return nil, zerrors.Newf(zerrors.AmountOutOfBoundsError, "Amount is too high, maximum is %d sats", w.config.MaxSats)
	}

	invoiceParams := phoenixd.CreateInvoiceParams{AmountSat: amountSat}
	if zapRequest != nil {
		invoiceParams.DescriptionHash = zapRequest.DescriptionHash()
		invoiceParams.ExternalID = zap.ZapExternalID(zapRequest.ID)
	} else {
		invoiceParams.Description = w.metadataHash
		invoiceParams.ExternalID = zap.LnurlExternalID(w.metadataHash)
	}

	invoice, err := w.invoicer.CreateInvoice(ctx, invoiceParams)
	if err != nil {
		return nil, err
	}

	if zapRequest != nil && w.store != nil {
		if err := w.store.Save(zapRequest.ID, zapRequest.Serialize()); err != nil {
			w.logger.Errorf("[LNURL] Could not store zap request %s: %v", zapRequest.ID, err)
		}
	}

	return &lnurl.LNURLPayValues{
		LNURLResponse: lnurl.LNURLResponse{Status: api.StatusOk},
		PR:            invoice.Serialized,
		Routes:        make([]struct{}, 0),
		SuccessAction: &lnurl.SuccessAction{Message: "Thanks for zapping " + params.Username, Tag: "message"},
	}, nil
}

// zapRequest returns the validated zap request of params, or nil when the
// payment goes ahead as plain LNURL. A zap request that cannot be parsed
// is ignored; one that parses but breaks a rule fails the callback.
func (w *Lnurl) zapRequest(params CallbackParams) (*nostr.ZapRequest, error) {
	if params.Nostr == "" {
		return nil, nil
	}
	w.logger.Debugf("[LNURL] Raw nostr zap request %s", params.Nostr)
	if !w.SupportsZaps() {
		w.logger.Debugf("[LNURL] No nostr identity configured for %s, ignoring zap request and using plain LNURL", params.Username)
		return nil, nil
	}
	zr, err := nostr.ParseZapRequest(params.Nostr)
	if err != nil {
		w.logger.Warnf("[LNURL] Couldn't decode ?nostr= zap request parameter, ignoring: %v", err)
		return nil, nil
	}
	if err := zr.Validate(params.AmountMsat, w.config.Keys.PublicKey); err != nil {
		var zerr zerrors.ZapError
		if zerrors.As(err, &zerr) {
			return nil, zerrors.Wrap(zerr.Code, invalidZapPrefix+zerr.Message, zerr.Err)
		}
		return nil, zerrors.Wrap(zerrors.InvalidRequestError, invalidZapPrefix+err.Error(), err)
	}
	return zr, nil
}

// MsatToSat rounds up, so the invoice never asks for less than requested.
func MsatToSat(msat int64) int64 {
	sat := msat / 1000
	if msat%1000 > 0 {
		sat++
	}
	return sat
}
