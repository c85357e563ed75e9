// Package idgen issues opaque identifiers for transient resources such as
// draft orders and request ids.
package idgen

import "github.com/google/uuid"

// Generator returns a new identifier on every call. Implementations must be
// safe for concurrent use.
type Generator interface {
	NewID() string
}

// UUID generates random (version 4) UUIDs, 122 random bits out of 128.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }
