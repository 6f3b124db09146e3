package scheduler

import (
	"context"
	"sync/atomic"
)

// Locker grants run exclusivity. TryLock never blocks waiting for a holder:
// ok=false means another run owns the lock. release must be called exactly
// once after a successful TryLock.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// LocalLock is an in-process Locker.
type LocalLock struct {
	held atomic.Bool
}

// TryLock implements Locker.
func (l *LocalLock) TryLock(context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { l.held.Store(false) }, true, nil
}

// Held reports whether a run currently owns the lock.
func (l *LocalLock) Held() bool { return l.held.Load() }
