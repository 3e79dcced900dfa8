package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const hexDigits = "0123456789abcdef"

// Serialize returns the NIP-01 signing pre-image
// [0,<pubkey>,<created_at>,<kind>,<tags>,<content>] as compact UTF-8 JSON.
// The pubkey is lower-cased, everything else is kept verbatim and only the
// escapes JSON requires are applied, so the output is stable across
// implementations.
func Serialize(pubkey string, createdAt int64, kind int, tags Tags, content string) []byte {
	var b bytes.Buffer
	b.Grow(64 + len(pubkey) + len(content))
	b.WriteString("[0,")
	writeString(&b, strings.ToLower(pubkey))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(createdAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(kind))
	b.WriteByte(',')
	writeTags(&b, tags)
	b.WriteByte(',')
	writeString(&b, content)
	b.WriteByte(']')
	return b.Bytes()
}

// Digest is the hex SHA-256 of Serialize. It is the event id and the message
// that gets signed.
func Digest(pubkey string, createdAt int64, kind int, tags Tags, content string) string {
	h := sha256.Sum256(Serialize(pubkey, createdAt, kind, tags, content))
	return hex.EncodeToString(h[:])
}

func writeTags(b *bytes.Buffer, tags Tags) {
	b.WriteByte('[')
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeString(b, v)
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}

func writeString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[c>>4])
				b.WriteByte(hexDigits[c&0xf])
				continue
			}
			// multi-byte UTF-8 sequences pass through untouched
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
