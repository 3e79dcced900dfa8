package nostr

// Nip05Response is served at /.well-known/nostr.json so the recipient's
// identifier <user>@<host> resolves to its public key.
type Nip05Response struct {
	Names  map[string]string   `json:"names"`
	Relays map[string][]string `json:"relays,omitempty"`
}

func NewNip05Response(username, pubkey string, relays []string) Nip05Response {
	resp := Nip05Response{Names: map[string]string{username: pubkey}}
	if len(relays) > 0 {
		resp.Relays = map[string][]string{pubkey: relays}
	}
	return resp
}
