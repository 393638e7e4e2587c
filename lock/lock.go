package lock

import "context"

// Locker provides mutual exclusion with context support.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// WithLock acquires l, calls fn and releases l, even when fn fails.
// A nil Locker runs fn unguarded.
func WithLock(ctx context.Context, l Locker, fn func() error) error {
	if l == nil {
		return fn()
	}
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock(ctx) //nolint:errcheck
	return fn()
}
