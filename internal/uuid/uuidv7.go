// Package uuid generates the time-ordered identifiers used as primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Version 7 ids sort by creation time, which keeps
// b-tree inserts append-only and gives transactions a stable natural order.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Entropy failure; a random v4 is still unique.
		return googleuuid.NewString()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
