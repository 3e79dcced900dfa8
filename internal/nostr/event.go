package nostr

const (
	KindZapRequest = 9734
	KindZapReceipt = 9735
)

type Tag []string

// Key returns the tag name, or "" for an empty tag.
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first tag value, or "" if there is none.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

type Tags []Tag

// GetAll returns every tag named key, in order.
func (tags Tags) GetAll(key string) Tags {
	var result Tags
	for _, t := range tags {
		if t.Key() == key {
			result = append(result, t)
		}
	}
	return result
}

// GetLast returns the last tag named key, or nil.
func (tags Tags) GetLast(key string) *Tag {
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i].Key() == key {
			tag := tags[i]
			return &tag
		}
	}
	return nil
}

// Event is the NIP-01 event envelope. Field order matches the wire format
// published to relays.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// GetID computes the canonical id of the event from its identity fields.
func (evt Event) GetID() string {
	return Digest(evt.PubKey, evt.CreatedAt, evt.Kind, evt.Tags, evt.Content)
}

// CheckID reports whether the claimed id matches the canonical digest.
func (evt Event) CheckID() bool {
	return evt.ID == evt.GetID()
}
