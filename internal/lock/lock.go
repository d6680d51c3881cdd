// Package lock serializes writers that must observe a consistent view of
// shared state, either inside one process or across replicas via redis.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrLockKeyEmpty = errors.New("lock key is empty")

// Locker grants exclusive ownership of a key until the returned release func runs.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker is a keyed mutex for single-process deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrLockKeyEmpty
	}

	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
