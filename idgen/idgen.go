// Package idgen provides pluggable page-id generation for simplepaged.
//
// The page manager accepts a Generator at construction time, making the
// id strategy a startup-time
// decision rather than a compile-time one — tests supply a deterministic
// Generator instead of real UUIDs.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Default is the page manager's default generator: UUIDv7.
var Default Generator = UUIDv7()

// New produces an id using the Default generator.
func New() string {
	return Default()
}
