package ids

import (
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// PersistentID identifies a customer for the whole of its life, independent of
// the world-local holder handle. Items carry it as their owner.
type PersistentID struct {
	id ulid.ULID
}

func (p PersistentID) String() string { return p.id.String() }
func (p PersistentID) IsZero() bool   { return p.id == ulid.ULID{} }

func ParsePersistentID(s string) (PersistentID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return PersistentID{}, err
	}
	return PersistentID{id: u}, nil
}

// Generator hands out PersistentIDs. It is not safe for concurrent use; the
// world owns one and calls it from its loop goroutine only.
type Generator struct {
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator returns a Generator drawing randomness from entropy. Passing a
// seeded reader and a fixed clock makes id allocation reproducible.
//
// Each id consumes exactly ten bytes of entropy; no read-ahead buffer sits in
// between, so the reader's own state is enough to resume allocation.
func NewGenerator(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

func (g *Generator) New() PersistentID {
	return PersistentID{id: ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)}
}
