package nostr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	gonostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ParsePublicKey accepts an npub or a 32-byte hex x-only public key and
// returns the lower-case hex form.
func ParsePublicKey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "nsec") {
		return "", fmt.Errorf("this is a private key, not a public key")
	}
	if strings.HasPrefix(s, "npub") {
		prefix, value, err := nip19.Decode(s)
		if err != nil {
			return "", fmt.Errorf("could not decode npub: %w", err)
		}
		if prefix != "npub" {
			return "", fmt.Errorf("invalid prefix %q", prefix)
		}
		s = value.(string)
	}
	if err := checkHex(s, 32); err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	return strings.ToLower(s), nil
}

// ParsePrivateKey accepts an nsec or a 32-byte hex secret key and returns the
// lower-case hex form.
func ParsePrivateKey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "nsec") {
		prefix, value, err := nip19.Decode(s)
		if err != nil {
			return "", fmt.Errorf("could not decode nsec: %w", err)
		}
		if prefix != "nsec" {
			return "", fmt.Errorf("invalid prefix %q", prefix)
		}
		s = value.(string)
	}
	if err := checkHex(s, 32); err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return strings.ToLower(s), nil
}

// EncodePublicKey returns the npub form of a hex public key.
func EncodePublicKey(pubkey string) (string, error) {
	return nip19.EncodePublicKey(pubkey)
}

// Keypair is the recipient identity used to sign zap receipts.
type Keypair struct {
	PublicKey string
	private   *btcec.PrivateKey
}

// NewKeypair derives the x-only public key of secretKey (nsec or hex).
func NewKeypair(secretKey string) (*Keypair, error) {
	sk, err := ParsePrivateKey(secretKey)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(sk)
	if err != nil {
		return nil, err
	}
	pub, err := gonostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("could not derive public key: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &Keypair{PublicKey: pub, private: priv}, nil
}

// Sign produces a BIP-340 signature over a hex encoded 32-byte digest.
func (k *Keypair) Sign(digest string) (string, error) {
	msg, err := hex.DecodeString(digest)
	if err != nil || len(msg) != 32 {
		return "", fmt.Errorf("digest must be 32 bytes of hex")
	}
	sig, err := schnorr.Sign(k.private, msg)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks a BIP-340 signature by pubkey over a hex encoded digest.
// Malformed inputs are reported as errors, a well-formed but wrong signature
// as false.
func Verify(pubkey, digest, signature string) (bool, error) {
	pk, err := hex.DecodeString(pubkey)
	if err != nil {
		return false, fmt.Errorf("pubkey is not hex: %w", err)
	}
	msg, err := hex.DecodeString(digest)
	if err != nil {
		return false, fmt.Errorf("digest is not hex: %w", err)
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("signature is not hex: %w", err)
	}
	pub, err := schnorr.ParsePubKey(pk)
	if err != nil {
		return false, err
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, err
	}
	return sig.Verify(msg, pub), nil
}

func checkHex(s string, size int) error {
	if len(s) != size*2 {
		return fmt.Errorf("expected %d hex characters, got %d", size*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return err
	}
	return nil
}
