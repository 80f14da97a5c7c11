package games

import (
	"context"
	"time"
)

// Store persists rooms by code. Implementations live in the storage package.
type Store interface {
	// Create stores a new room. It fails with ErrDuplicateRoom if the code is taken.
	Create(ctx context.Context, r *Room) error

	// Get returns a private copy of the room, or ErrRoomNotFound.
	Get(ctx context.Context, code string) (*Room, error)

	// Save replaces the stored room if its version still equals r.Version,
	// then increments the version on both. A stale version yields
	// ErrVersionConflict.
	Save(ctx context.Context, r *Room) error

	// DeleteExpired removes every non-permanent room whose expiry is before
	// now and for which keep returns false, and returns the deleted codes.
	DeleteExpired(ctx context.Context, now time.Time, keep func(code string) bool) ([]string, error)
}
