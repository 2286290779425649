// Package lock serializes work on a single workflow instance. One locker
// instance is shared per process; the Redis implementation extends the
// guarantee across processes.
package lock

import (
	"context"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker grants exclusive access to a key. Lock blocks until the lock is
// held or the context is done.
type Locker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// DefaultTTL bounds how long a crashed holder can keep a distributed lock.
const DefaultTTL = 30 * time.Second
