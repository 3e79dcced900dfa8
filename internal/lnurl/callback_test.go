package lnurl

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	"github.com/massmux/phoenixd-lnurl/internal/nostr"
	"github.com/massmux/phoenixd-lnurl/internal/phoenixd"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecretKey = "661a629b00517e6c55f75eeead359510abe1f2c04e06531abafb3e666fcaafaf"
	testPubkey    = "e8b4b30e67c9eabc719018435e57ae45fd0eec2f6ada428b04d15e67149886cf"
	zapID         = "c66329d84a2acf1c11296b3efc42931dd00d76b8bfb8e5b37d43bff8fa921914"
	zapRaw        = `{"kind":9734,"id":"c66329d84a2acf1c11296b3efc42931dd00d76b8bfb8e5b37d43bff8fa921914",` +
		`"sig":"6e620802ec934fdc7580df54a852161e9732414d0963c10de9f42b831065cf139b8e9f8aa333b4281376d4c42b281d48e5ece4643f8a42091a4788da3a1fe116",` +
		`"pubkey":"e8b4b30e67c9eabc719018435e57ae45fd0eec2f6ada428b04d15e67149886cf","created_at":1713722971,` +
		`"tags":[["p","e8b4b30e67c9eabc719018435e57ae45fd0eec2f6ada428b04d15e67149886cf"],["amount","1337000"],` +
		`["relays","wss://relay.nostr.band/","wss://nos.lol/","wss://relay.damus.io/"],` +
		`["e","4af818a397daa226a85e8012197bee9ac4fd9cce85b4949334481d0c5bc57322"]],"content":""}`
	zapDescriptionHash = "33d815a39e052fc804c0fdb539fac8e7f45bee32e16fe1dc9c5d32d4e1f3ea49"
	metadataHash       = "92bd8199ddb753b6fba5d8a71099c4f34e2d8a43c77ca3174db1f96ef1c47cbf"
)

type recordingInvoicer struct {
	*phoenixd.MockClient
	params []phoenixd.CreateInvoiceParams
}

func (r *recordingInvoicer) CreateInvoice(ctx context.Context, params phoenixd.CreateInvoiceParams) (phoenixd.CreateInvoiceResponse, error) {
	r.params = append(r.params, params)
	return r.MockClient.CreateInvoice(ctx, params)
}

func (r *recordingInvoicer) last(t *testing.T) phoenixd.CreateInvoiceParams {
	t.Helper()
	require.NotEmpty(t, r.params)
	return r.params[len(r.params)-1]
}

type memoryStore struct {
	saved map[string]string
	err   error
}

func (m *memoryStore) Save(eventID, raw string) error {
	if m.err != nil {
		return m.err
	}
	m.saved[eventID] = raw
	return nil
}

type fixture struct {
	lnurl    *Lnurl
	invoicer *recordingInvoicer
	store    *memoryStore
	hook     *test.Hook
}

func testConfig(t *testing.T, withKeys bool) Config {
	t.Helper()
	config := Config{
		Username: "satoshi",
		Hostname: "127.0.0.1",
		MinSats:  1000,
		MaxSats:  500_000,
		Relays:   []string{"wss://nostr.bitcoin.org"},
	}
	if withKeys {
		keys, err := nostr.NewKeypair(testSecretKey)
		require.NoError(t, err)
		config.Keys = keys
	}
	return config
}

func newFixture(t *testing.T, config Config) fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	f := fixture{
		invoicer: &recordingInvoicer{MockClient: phoenixd.NewMockClient(logger)},
		store:    &memoryStore{saved: map[string]string{}},
		hook:     hook,
	}
	f.lnurl = New(config, f.invoicer, WithZapStore(f.store), WithLogger(logger))
	return f
}

func TestMetadata(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	assert.Equal(t, `[["text/plain","Zap satoshi some sats"],["text/identifier","satoshi@127.0.0.1"]]`, f.lnurl.Metadata().Encode())
	assert.Equal(t, metadataHash, f.lnurl.MetadataHash())
	assert.Equal(t, "satoshi@127.0.0.1", f.lnurl.Address())
	assert.Equal(t, "https://127.0.0.1/lnurlp/satoshi/callback", f.lnurl.CallbackURL())

	encoded, err := f.lnurl.EncodedLNURL()
	require.NoError(t, err)
	assert.Equal(t, "LNURL1DP68GURN8GHJ7VFJXUHRQT3S9CCJ7MRWW4EXCUP0WDSHGMMNDP5S4SDZXR", encoded)

	onion := New(Config{Username: "satoshi", Hostname: "abcdef.onion"}, nil)
	assert.Equal(t, "http://abcdef.onion/lnurlp/satoshi/callback", onion.CallbackURL())
}

func TestPayParams(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	params, err := f.lnurl.PayParams("satoshi")
	require.NoError(t, err)
	assert.Equal(t, "OK", params.Status)
	assert.Equal(t, PayRequestTag, params.Tag)
	assert.Equal(t, int64(1_000_000), params.MinSendable)
	assert.Equal(t, int64(500_000_000), params.MaxSendable)
	assert.Equal(t, int64(CommentAllowed), params.CommentAllowed)
	assert.True(t, params.AllowNostr)
	assert.Equal(t, testPubkey, params.NostrPubKey)

	_, err = f.lnurl.PayParams("notsatoshi")
	assert.ErrorIs(t, err, zerrors.ErrUnknownRecipient)

	plain := newFixture(t, testConfig(t, false))
	params, err = plain.lnurl.PayParams("satoshi")
	require.NoError(t, err)
	assert.False(t, params.AllowNostr)
	assert.Empty(t, params.NostrPubKey)
}

func TestDefaults(t *testing.T) {
	l := New(Config{Username: "satoshi", Hostname: "example.com"}, nil)
	params, err := l.PayParams("satoshi")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), params.MinSendable)
	assert.Equal(t, int64(MaxCorn*1000), params.MaxSendable)
}

func TestCallbackPlain(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	resp, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: 1_337_000, Comment: "HFSP"})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, phoenixd.MockInvoice, resp.PR)
	assert.NotNil(t, resp.Routes)
	assert.Empty(t, resp.Routes)
	require.NotNil(t, resp.SuccessAction)
	assert.Equal(t, "message", resp.SuccessAction.Tag)
	assert.Equal(t, "Thanks for zapping satoshi", resp.SuccessAction.Message)

	params := f.invoicer.last(t)
	assert.Equal(t, int64(1337), params.AmountSat)
	assert.Equal(t, metadataHash, params.Description)
	assert.Empty(t, params.DescriptionHash)
	assert.Equal(t, "lnurl-"+metadataHash, params.ExternalID)
	assert.Empty(t, f.store.saved)
}

func TestCallbackZap(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	resp, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: 1_337_000, Nostr: zapRaw})
	require.NoError(t, err)
	assert.Equal(t, phoenixd.MockInvoice, resp.PR)

	params := f.invoicer.last(t)
	assert.Equal(t, int64(1337), params.AmountSat)
	assert.Empty(t, params.Description)
	assert.Equal(t, zapDescriptionHash, params.DescriptionHash)
	assert.Equal(t, "zap-"+zapID, params.ExternalID)
	assert.Equal(t, zapRaw, f.store.saved[zapID])
}

func TestCallbackZapStoreFailureIsLogged(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	f.store.err = errors.New("disk full")
	_, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: 1_337_000, Nostr: zapRaw})
	require.NoError(t, err)
	require.NotNil(t, f.hook.LastEntry())
	assert.Contains(t, f.hook.LastEntry().Message, "Could not store zap request")
}

func TestCallbackRounding(t *testing.T) {
	cases := map[int64]int64{
		1_337_000: 1337,
		1_337_001: 1338,
		1_337_999: 1338,
		1_000_000: 1000,
	}
	for msat, sat := range cases {
		f := newFixture(t, testConfig(t, false))
		_, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: msat})
		require.NoError(t, err)
		assert.Equal(t, sat, f.invoicer.last(t).AmountSat, "msat %d", msat)
		assert.Equal(t, sat, MsatToSat(msat))
	}
}

func TestMsatToSat(t *testing.T) {
	assert.Equal(t, int64(0), MsatToSat(0))
	assert.Equal(t, int64(1), MsatToSat(1))
	assert.Equal(t, int64(1), MsatToSat(1000))
	assert.Equal(t, int64(2), MsatToSat(1001))
	assert.Equal(t, int64(math.MaxInt64/1000+1), MsatToSat(math.MaxInt64-500))
	assert.Equal(t, int64(math.MaxInt64/1000+1), MsatToSat(math.MaxInt64))
}

func TestCallbackBounds(t *testing.T) {
	cases := []struct {
		msat   int64
		reason string
	}{
		{999_000, "Amount is too low, minimum is 1000 sats"},
		{1_000_000, ""},
		{500_000_000, ""},
		{500_000_001, "Amount is too high, maximum is 500000 sats"},
		{500_001_000, "Amount is too high, maximum is 500000 sats"},
		{math.MaxInt64 - 500, "Amount is too high, maximum is 500000 sats"},
		{math.MaxInt64, "Amount is too high, maximum is 500000 sats"},
	}
	for _, c := range cases {
		f := newFixture(t, testConfig(t, false))
		_, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: c.msat})
		if c.reason == "" {
			assert.NoError(t, err, "msat %d", c.msat)
			continue
		}
		assert.ErrorIs(t, err, zerrors.ErrAmountOutOfBounds, "msat %d", c.msat)
		assert.Equal(t, c.reason, zerrors.Reason(err, false))
		assert.Empty(t, f.invoicer.params)
	}
}

func TestCallbackRejects(t *testing.T) {
	mutated := strings.Replace(zapRaw, `"content":""`, `"content":"x"`, 1)
	cases := []struct {
		name   string
		params CallbackParams
		code   zerrors.ZapErrorType
		reason string
	}{
		{"unknown user", CallbackParams{Username: "notsatoshi", AmountMsat: 1_337_000},
			zerrors.UnknownRecipientError, "Unknown user"},
		{"zero amount", CallbackParams{Username: "satoshi"},
			zerrors.InvalidRequestError, "amount must be a positive number of millisatoshis"},
		{"comment too long", CallbackParams{Username: "satoshi", AmountMsat: 1_337_000, Comment: strings.Repeat("ä", CommentAllowed+1)},
			zerrors.CommentTooLongError, "Comment too long (max: 140 characters)"},
		{"amount mismatch", CallbackParams{Username: "satoshi", AmountMsat: 1_338_000, Nostr: zapRaw},
			zerrors.AmountMismatchError, "Invalid NIP-57 Zap Request event: Amount does not match"},
		// zap rules are checked before the amount bounds
		{"tampered zap below minimum", CallbackParams{Username: "satoshi", AmountMsat: 1000, Nostr: mutated},
			zerrors.IdentityMismatchError, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, testConfig(t, true))
			_, err := f.lnurl.HandleCallback(context.Background(), c.params)
			require.Error(t, err)
			assert.Equal(t, c.code, zerrors.Code(err))
			if c.reason != "" {
				assert.Equal(t, c.reason, zerrors.Reason(err, false))
			} else {
				assert.True(t, strings.HasPrefix(zerrors.Reason(err, false), invalidZapPrefix))
			}
			assert.Empty(t, f.invoicer.params)
		})
	}
}

func TestCallbackCommentAtLimit(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	_, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{
		Username: "satoshi", AmountMsat: 1_337_000, Comment: strings.Repeat("ä", CommentAllowed),
	})
	assert.NoError(t, err)
}

func TestCallbackZapFallsBackToPlain(t *testing.T) {
	cases := map[string]struct {
		keys  bool
		nostr string
	}{
		"unparsable zap request": {true, `{"kind":9734,`},
		"wrong kind":             {true, strings.Replace(zapRaw, `"kind":9734`, `"kind":1`, 1)},
		"zaps not configured":    {false, zapRaw},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, testConfig(t, c.keys))
			resp, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: 1_337_000, Nostr: c.nostr})
			require.NoError(t, err)
			assert.Equal(t, phoenixd.MockInvoice, resp.PR)
			params := f.invoicer.last(t)
			assert.Equal(t, metadataHash, params.Description)
			assert.Equal(t, "lnurl-"+metadataHash, params.ExternalID)
			assert.Empty(t, f.store.saved)
		})
	}
}

func TestCallbackBackendFailure(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	f.invoicer.Err = errors.New("connection refused")
	_, err := f.lnurl.HandleCallback(context.Background(), CallbackParams{Username: "satoshi", AmountMsat: 1_337_000, Nostr: zapRaw})
	assert.ErrorIs(t, err, zerrors.ErrBackendFailure)
	assert.Equal(t, "Internal Server Error", zerrors.Reason(err, false))
	assert.Empty(t, f.store.saved)
}

func TestNip05(t *testing.T) {
	f := newFixture(t, testConfig(t, true))
	resp, ok := f.lnurl.Nip05()
	require.True(t, ok)
	assert.Equal(t, map[string]string{"satoshi": testPubkey}, resp.Names)
	assert.Equal(t, map[string][]string{testPubkey: {"wss://nostr.bitcoin.org"}}, resp.Relays)

	_, ok = newFixture(t, testConfig(t, false)).lnurl.Nip05()
	assert.False(t, ok)

	config := testConfig(t, true)
	config.Relays = nil
	_, ok = newFixture(t, config).lnurl.Nip05()
	assert.False(t, ok)
}
