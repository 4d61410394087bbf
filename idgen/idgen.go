// Package idgen generates the identifiers carried by dombind events.
//
// Event IDs are UUIDv7 so that a sink ordering rows by ID also orders them
// by emission time. Each event kind gets its own prefix.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator behind New.
var Default Generator = UUIDv7()

// Event-scoped generators.
var (
	BoundID = Prefixed("bnd_", UUIDv7())
	ScanID  = Prefixed("scn_", UUIDv7())
)

// New produces an ID using Default. Request IDs for calls that arrive
// without one come from here.
func New() string {
	return Default()
}
