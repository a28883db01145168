// Package lock serializes round lifecycle transitions per room.
package lock

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotHeld = errors.New("lock not held")

// Locker hands out exclusive, per-key locks. Acquire blocks until the lock is
// held or ctx is done; the returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func RoomKey(roomID uint) string {
	return fmt.Sprintf("ladder:room:%d:transition", roomID)
}
