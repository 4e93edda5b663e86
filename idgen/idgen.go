// Package idgen provides pluggable ID generation for autofill runs and the
// per-scan field identifiers handed to the value resolver.
//
// Constructors across the module (observability, autofill) accept a Generator,
// making the ID strategy a startup-time decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Field identifiers use NanoID(9): short, URL-safe, unique within a scan.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		b := make([]byte, length)
		for i := range b {
			b[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(b)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID
// (e.g. "run_", "evt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Suffixed joins the non-empty parts with "-" and appends a fresh ID from gen.
// When every part is empty, fallback is used as the base.
//
//	Suffixed(NanoID(9), "field", "email", "", "form-control") // "email-form-control-k3v9x0q2a"
func Suffixed(gen Generator, fallback string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	base := strings.Join(kept, "-")
	if base == "" {
		base = fallback
	}
	return base + "-" + gen()
}

// Default is UUIDv7: time-sortable, globally unique.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
