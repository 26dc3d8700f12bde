package conversation

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker. Waiters on one key are granted the
// lock in arrival order; distinct keys never contend.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	held    bool
	waiters []chan struct{}
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	if !l.held {
		l.held = true
		k.mu.Unlock()
		return k.unlocker(key, l), nil
	}
	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	k.mu.Unlock()

	select {
	case <-ready:
		return k.unlocker(key, l), nil
	case <-ctx.Done():
		k.mu.Lock()
		defer k.mu.Unlock()
		for i, w := range l.waiters {
			if w == ready {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				return nil, ctx.Err()
			}
		}
		// Handed the lock while giving up: pass it on.
		k.handOff(key, l)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) unlocker(key string, l *keyLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			k.handOff(key, l)
			k.mu.Unlock()
		})
	}
}

// handOff grants the lock to the oldest waiter or frees the key. k.mu must
// be held.
func (k *KeyedMutex) handOff(key string, l *keyLock) {
	if len(l.waiters) == 0 {
		l.held = false
		delete(k.locks, key)
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	close(next)
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
