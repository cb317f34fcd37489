/*
Package lock provides keyed exclusive locks.

PURPOSE:
  Serializes work on one shared resource (a material, an employee) while
  leaving unrelated keys free. Two implementations:

  Local: in-process, for a single server instance
  Redis: SET NX PX with a token, for several instances sharing one store

KEY NAMING:
  Callers namespace keys, e.g. "material:mat-123", "employee:emp-9".

ORDERING:
  A caller that needs several keys must take them in sorted order
  (see inventory.LockAll) so two callers can never wait on each other.
*/
package lock

import (
	"context"
	"sync"
)

// Local is an in-process keyed mutex. The zero value is not usable; use NewLocal.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // holds one token while locked
	refs int           // holders + waiters
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
