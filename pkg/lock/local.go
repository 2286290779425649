package lock

import (
	"context"
	"sync"
)

// LocalLocker is an in-process keyed mutex. It serves single-node
// deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	l.mu.Lock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}

	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry)

		return nil, ctx.Err()
	}

	unlock := func(_ context.Context) error {
		<-entry.ch
		l.release(key, entry)

		return nil
	}

	return unlock, nil
}

func (l *LocalLocker) release(key string, entry *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
