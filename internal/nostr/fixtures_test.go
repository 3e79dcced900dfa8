package nostr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testSecretKey = "661a629b00517e6c55f75eeead359510abe1f2c04e06531abafb3e666fcaafaf"
	testPubkey    = "e8b4b30e67c9eabc719018435e57ae45fd0eec2f6ada428b04d15e67149886cf"
	testNpub      = "npub1az6txrn8e84tcuvsrpp4u4awgh7samp0dtdy9zcy690xw9ycsm8suq2sze"
	zappedEventID = "4af818a397daa226a85e8012197bee9ac4fd9cce85b4949334481d0c5bc57322"
	otherPubkey   = "84dee6e676e5bb67b4ad4e042cf70cbd8681155db535942fcc6a0533858a7240"

	validZapID  = "c66329d84a2acf1c11296b3efc42931dd00d76b8bfb8e5b37d43bff8fa921914"
	validZapSig = "6e620802ec934fdc7580df54a852161e9732414d0963c10de9f42b831065cf139b8e9f8aa333b4281376d4c42b281d48e5ece4643f8a42091a4788da3a1fe116"

	// a valid signature, but over a different event
	foreignSig = "bb31687b6bfa319339008f7fcd862430109b9969771cdff4218828b13cbbf3cc82aa75a593019972d8b3d0f45777809a3fa5e81d7d26567e4db8ca2582038c22"

	noETagZapID  = "082615a1887fdb49528e5ab141629c1b7c392d37ae904ae788bf0fed38cdbdc3"
	noETagZapSig = "64648fea2fc883e042683c1f679fe4cb163bcc5f361179ec9966118345217333ad9e560247f27a7620eb3d9175c1f63999017916d2524e47a9c83b4fa72f29f9"

	otherRecipientZapID  = "479f36282977c0d22b80d28b5d42c1c6a978d19b7d440707430e889758849d23"
	otherRecipientZapSig = "bf6c5268a0d56a7c9f563aadc953bef8383574c81e85671bd0f526e0637663335e63f9ac1368543351783e77a4fc4a55c01c9e43d5233facccf1547679fad921"

	// validZapRaw is validZapEvent as sent by a zapping wallet
	validZapRaw = `{"kind":9734,"id":"c66329d84a2acf1c11296b3efc42931dd00d76b8bfb8e5b37d43bff8fa921914",` +
		`"sig":"6e620802ec934fdc7580df54a852161e9732414d0963c10de9f42b831065cf139b8e9f8aa333b4281376d4c42b281d48e5ece4643f8a42091a4788da3a1fe116",` +
		`"pubkey":"e8b4b30e67c9eabc719018435e57ae45fd0eec2f6ada428b04d15e67149886cf","created_at":1713722971,` +
		`"tags":[["p","e8b4b30e67c9eabc719018435e57ae45fd0eec2f6ada428b04d15e67149886cf"],["amount","1337000"],` +
		`["relays","wss://relay.nostr.band/","wss://nos.lol/","wss://relay.damus.io/"],` +
		`["e","4af818a397daa226a85e8012197bee9ac4fd9cce85b4949334481d0c5bc57322"]],"content":""}`
)

var testRelays = []string{"wss://relay.nostr.band/", "wss://nos.lol/", "wss://relay.damus.io/"}

func validZapEvent() Event {
	return Event{
		ID:        validZapID,
		PubKey:    testPubkey,
		CreatedAt: 1713722971,
		Kind:      KindZapRequest,
		Tags: Tags{
			{"p", testPubkey},
			{"amount", "1337000"},
			append(Tag{"relays"}, testRelays...),
			{"e", zappedEventID},
		},
		Content: "",
		Sig:     validZapSig,
	}
}

func rawEvent(t *testing.T, evt Event) string {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return string(b)
}
