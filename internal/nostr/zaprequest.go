package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
)

// ZapRequest is a parsed, not yet trusted, kind 9734 event. Raw keeps the
// JSON exactly as the payer sent it.
type ZapRequest struct {
	Event
	Raw string
}

// zapRequestEnvelope uses pointers so that missing fields can be told apart
// from zero values.
type zapRequestEnvelope struct {
	ID        *string `json:"id"`
	PubKey    *string `json:"pubkey"`
	CreatedAt *int64  `json:"created_at"`
	Kind      *int    `json:"kind"`
	Tags      *Tags   `json:"tags"`
	Content   *string `json:"content"`
	Sig       *string `json:"sig"`
}

var envelopeFields = []string{"id", "pubkey", "created_at", "kind", "tags", "content", "sig"}

// ParseZapRequest decodes raw into a ZapRequest. Any structural problem is a
// ZapParseError: the caller treats the payer as not zapping at all.
func ParseZapRequest(raw string) (*ZapRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, zerrors.Wrap(zerrors.ZapParseError, "malformed zap request", err)
	}
	// encoding/json matches keys case-insensitively, event keys are exact
	for key := range fields {
		for _, name := range envelopeFields {
			if key != name && strings.EqualFold(key, name) {
				return nil, zerrors.Wrap(zerrors.ZapParseError, "malformed zap request",
					fmt.Errorf("field %q must be spelled %q", key, name))
			}
		}
	}
	var env zapRequestEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, zerrors.Wrap(zerrors.ZapParseError, "malformed zap request", err)
	}
	missing := make([]string, 0)
	if env.ID == nil {
		missing = append(missing, "id")
	}
	if env.PubKey == nil {
		missing = append(missing, "pubkey")
	}
	if env.CreatedAt == nil {
		missing = append(missing, "created_at")
	}
	if env.Tags == nil {
		missing = append(missing, "tags")
	}
	if env.Content == nil {
		missing = append(missing, "content")
	}
	if env.Sig == nil {
		missing = append(missing, "sig")
	}
	if len(missing) > 0 {
		return nil, zerrors.Wrap(zerrors.ZapParseError, "malformed zap request",
			fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")))
	}
	kind := KindZapRequest
	if env.Kind != nil {
		kind = *env.Kind
	}
	if kind != KindZapRequest {
		return nil, zerrors.Wrap(zerrors.ZapParseError, "malformed zap request",
			fmt.Errorf("kind %d is not a zap request", kind))
	}
	return &ZapRequest{
		Event: Event{
			ID:        *env.ID,
			PubKey:    *env.PubKey,
			CreatedAt: *env.CreatedAt,
			Kind:      kind,
			Tags:      *env.Tags,
			Content:   *env.Content,
			Sig:       *env.Sig,
		},
		Raw: raw,
	}, nil
}

// ValidateZapRequest parses raw and runs every validation step against the
// amount of the LNURL callback and the configured recipient.
func ValidateZapRequest(raw string, amountMsat int64, recipientPubkey string) (*ZapRequest, error) {
	zr, err := ParseZapRequest(raw)
	if err != nil {
		return nil, err
	}
	if err := zr.Validate(amountMsat, recipientPubkey); err != nil {
		return nil, err
	}
	return zr, nil
}

// Validate checks, in order: identity, signature, amount, recipient and
// referenced event. The first failing rule is returned.
func (zr *ZapRequest) Validate(amountMsat int64, recipientPubkey string) error {
	if err := zr.VerifySignature(); err != nil {
		return err
	}
	amount, ok, err := zr.AmountMsat()
	if err != nil {
		return err
	}
	if ok && amount != amountMsat {
		return zerrors.Wrap(zerrors.AmountMismatchError, "Amount does not match",
			fmt.Errorf("zap request amount %d != callback amount %d", amount, amountMsat))
	}
	recipient, err := zr.Recipient()
	if err != nil {
		return err
	}
	if recipient != strings.ToLower(recipientPubkey) {
		return zerrors.Wrap(zerrors.RecipientMismatchError, "Recipient pubkey doesn't match expected value",
			fmt.Errorf("%s != %s", recipient, recipientPubkey))
	}
	if _, err := zr.ZappedEvent(); err != nil {
		return err
	}
	return nil
}

// VerifySignature recomputes the event id and checks the Schnorr signature
// over it.
func (zr *ZapRequest) VerifySignature() error {
	id := zr.GetID()
	if id != zr.ID {
		return zerrors.Newf(zerrors.IdentityMismatchError,
			"Computed event ID did not match event's given ID (%s != %s)", id, zr.ID)
	}
	valid, err := Verify(zr.PubKey, id, zr.Sig)
	if err != nil {
		return zerrors.Wrap(zerrors.InvalidSignatureError, "Invalid signature on event", err)
	}
	if !valid {
		return zerrors.ErrInvalidSignature
	}
	return nil
}

// AmountMsat returns the value of the amount tag. ok is false when the tag
// is absent.
func (zr *ZapRequest) AmountMsat() (amount int64, ok bool, err error) {
	tags := zr.Tags.GetAll("amount")
	if len(tags) == 0 {
		return 0, false, nil
	}
	if len(tags) > 1 {
		return 0, false, zerrors.Newf(zerrors.MalformedTagsError, "Multiple `amount` tags in event")
	}
	amount, err = strconv.ParseInt(tags[0].Value(), 10, 64)
	if err != nil {
		return 0, false, zerrors.Wrap(zerrors.MalformedTagsError, "Invalid `amount` tag in event", err)
	}
	return amount, true, nil
}

// Recipient returns the single p tag value.
func (zr *ZapRequest) Recipient() (string, error) {
	value, err := zr.singular("p")
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", zerrors.Wrap(zerrors.RecipientMismatchError, "Recipient pubkey doesn't match expected value",
			fmt.Errorf("no `p` tag in zap request"))
	}
	return strings.ToLower(value), nil
}

// ZappedEvent returns the single e tag value.
func (zr *ZapRequest) ZappedEvent() (string, error) {
	value, err := zr.singular("e")
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", zerrors.ErrMissingReference
	}
	return value, nil
}

// Relays returns the values of the relays tag where the receipt should be
// published. When there are several relays tags the last one wins.
func (zr *ZapRequest) Relays() []string {
	tag := zr.Tags.GetLast("relays")
	if tag == nil {
		return []string{}
	}
	relays := make([]string, 0, len(*tag)-1)
	relays = append(relays, (*tag)[1:]...)
	return relays
}

// Serialize returns the zap request JSON used as invoice description and as
// the receipt's description tag.
func (zr *ZapRequest) Serialize() string {
	if zr.Raw != "" {
		return zr.Raw
	}
	// compact form with the field order zap-aware wallets emit
	b, _ := json.Marshal(struct {
		Kind      int    `json:"kind"`
		ID        string `json:"id"`
		Sig       string `json:"sig"`
		PubKey    string `json:"pubkey"`
		CreatedAt int64  `json:"created_at"`
		Tags      Tags   `json:"tags"`
		Content   string `json:"content"`
	}{zr.Kind, zr.ID, zr.Sig, zr.PubKey, zr.CreatedAt, zr.Tags, zr.Content})
	return string(b)
}

// DescriptionHash is the hex SHA-256 of Serialize, used as the invoice
// description hash.
func (zr *ZapRequest) DescriptionHash() string {
	h := sha256.Sum256([]byte(zr.Serialize()))
	return hex.EncodeToString(h[:])
}

func (zr *ZapRequest) singular(key string) (string, error) {
	for _, t := range zr.Tags {
		if len(t) == 0 {
			return "", zerrors.Newf(zerrors.MalformedTagsError, "Empty tag in event")
		}
	}
	tags := zr.Tags.GetAll(key)
	switch len(tags) {
	case 0:
		return "", nil
	case 1:
		return tags[0].Value(), nil
	default:
		return "", zerrors.Newf(zerrors.MalformedTagsError, "Multiple `%s` tags in event", key)
	}
}
