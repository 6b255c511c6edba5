// Package guard serializes ledger mutations and rejects re-entrant calls.
//
// Components that share ledger state share one Lock. Each component owns a
// named Guard on that lock. The first Enter on a call chain takes the lock;
// nested Enters for other components ride on it, and a second Enter for a
// component already on the chain fails with ErrReentrant. The call chain is
// tracked on the context, so the lock is held for exactly one outermost call.
// Waiting for the lock ends with ctx.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrReentrant = errors.New("guard: reentrant call")

// Lock is the mutex shared by every Guard over the same ledger state.
type Lock struct{ sem *semaphore.Weighted }

func NewLock() *Lock { return &Lock{sem: semaphore.NewWeighted(1)} }

type Guard struct {
	lock *Lock
	name string
}

// New returns a guard for component name on lock.
func New(lock *Lock, name string) *Guard { return &Guard{lock: lock, name: name} }

type chainKey struct{ lock *Lock }

// Enter marks the guard's component as active on the returned context. The
// release func must be called exactly once, usually deferred.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	key := chainKey{lock: g.lock}
	chain, held := ctx.Value(key).([]string)
	for _, name := range chain {
		if name == g.name {
			return ctx, func() {}, fmt.Errorf("%w: %s", ErrReentrant, g.name)
		}
	}

	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	next = append(next, g.name)
	ctx = context.WithValue(ctx, key, next)

	if held {
		return ctx, func() {}, nil
	}
	if err := g.lock.sem.Acquire(ctx, 1); err != nil {
		return ctx, func() {}, fmt.Errorf("guard: %s: %w", g.name, err)
	}
	var once sync.Once
	return ctx, func() { once.Do(func() { g.lock.sem.Release(1) }) }, nil
}

// Active reports whether the guard's component is on ctx's call chain.
func (g *Guard) Active(ctx context.Context) bool {
	chain, _ := ctx.Value(chainKey{lock: g.lock}).([]string)
	for _, name := range chain {
		if name == g.name {
			return true
		}
	}
	return false
}
