// Package idgen generates identifiers for chain runs and requests.
//
// Constructors that need ids take a Generator so tests can pin them.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NanoID returns a Generator of base-36 ids of the given length, for
// short-lived values such as request trace ids.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// Prefixed prepends prefix to every id of gen ("run_", "trc_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Fixed returns a Generator that always yields id.
func Fixed(id string) Generator {
	return func() string { return id }
}

// RunID names one chain run.
var RunID Generator = Prefixed("run_", UUIDv7())

// TraceID names one inbound request.
var TraceID Generator = Prefixed("trc_", NanoID(16))

// Parse validates a UUID string, with or without a prefix such as "run_".
func Parse(s string) (string, error) {
	raw := s
	if i := len(s) - 36; i > 0 {
		raw = s[i:]
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return s[:len(s)-len(raw)] + u.String(), nil
}
