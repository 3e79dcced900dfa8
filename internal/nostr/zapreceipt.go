package nostr

import (
	"crypto/sha256"
	"fmt"
	"time"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	log "github.com/sirupsen/logrus"
)

// PaidInvoice is the part of a settled payment a receipt attests to.
type PaidInvoice struct {
	Invoice     string
	Preimage    string
	Description string
	CompletedAt time.Time
}

// BuildZapReceipt derives and signs the kind 9735 receipt for a validated
// zap request. A nil logger falls back to the standard logrus logger.
func BuildZapReceipt(zr *ZapRequest, paid PaidInvoice, keys *Keypair, logger log.FieldLogger) (*Event, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if keys == nil {
		return nil, zerrors.Newf(zerrors.InvariantViolationError, "no signing key configured")
	}
	description := zr.Serialize()
	if sha256.Sum256([]byte(description)) != sha256.Sum256([]byte(paid.Description)) {
		logger.WithField("event", zr.ID).Warnf("[BuildZapReceipt] Invoice and Zap Request don't match")
	}
	recipient, err := zr.Recipient()
	if err != nil {
		return nil, zerrors.Wrap(zerrors.InvariantViolationError, "Couldn't parse recipient Nostr key out of Zap Request", err)
	}
	zapped, err := zr.ZappedEvent()
	if err != nil {
		return nil, zerrors.Wrap(zerrors.InvariantViolationError, "Can't find the event ID for this Zap Request", err)
	}
	receipt := &Event{
		PubKey:    keys.PublicKey,
		CreatedAt: paid.CompletedAt.Unix(),
		Kind:      KindZapReceipt,
		Tags: Tags{
			{"p", recipient},
			{"e", zapped},
			{"P", zr.PubKey},
			{"bolt11", paid.Invoice},
			{"description", description},
			{"preimage", paid.Preimage},
		},
		Content: "",
	}
	receipt.ID = receipt.GetID()
	receipt.Sig, err = keys.Sign(receipt.ID)
	if err != nil {
		return nil, zerrors.Wrap(zerrors.InvariantViolationError, "could not sign zap receipt", fmt.Errorf("sign %s: %w", receipt.ID, err))
	}
	return receipt, nil
}
