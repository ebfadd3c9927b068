package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	TokenLength = 64

	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// Largest multiple of len(tokenAlphabet) that fits in a byte. Bytes at or
	// above it are rejected so every symbol is equally likely.
	tokenByteCeiling = 256 - 256%len(tokenAlphabet)

	// UnknownIdentity stands in for a reader whose address could not be observed.
	UnknownIdentity = "unknown"
)

// GenerateToken returns a TokenLength string of alphanumerics read from crypto/rand.
func GenerateToken() (string, error) {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength+TokenLength/4)

	for len(out) < TokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= tokenByteCeiling {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}

	return string(out), nil
}

// ValidToken reports whether s has the shape of a generated token. It says
// nothing about whether the token exists.
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(tokenAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// Fingerprint derives the opaque reader identifier for one (identity, token)
// pair. The same client gets a different fingerprint for every token.
func Fingerprint(identity, token string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = UnknownIdentity
	}

	h := blake3.New()
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
