package cli

import (
	"github.com/google/uuid"
)

// RunIDGenerator produces ledger run ids.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so run ids sort by
// start time in the ledger.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Format: "018c0b6e-7d2a-7c3e-9f1a-2b3c4d5e6f70" (36 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (o *RootOptions) runIDs() RunIDGenerator {
	if o.RunIDs != nil {
		return o.RunIDs
	}
	return UUIDv7Generator{}
}
