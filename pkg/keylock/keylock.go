// Package keylock provides per-key mutual exclusion.
package keylock

import (
	"hash/fnv"
	"sync"
)

const numShards = 16

// Locker hands out one mutex per key. Entries are reference counted and
// dropped once nobody holds or waits on them, so the registry stays small.
// Distinct keys never share a mutex, which makes nested locking of
// different keys safe as long as callers keep a consistent order.
type Locker struct {
	shards [numShards]*lockShard
}

type lockShard struct {
	mu    sync.Mutex
	items map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// New creates a Locker.
func New() *Locker {
	l := &Locker{}
	for i := 0; i < numShards; i++ {
		l.shards[i] = &lockShard{
			items: make(map[string]*lockEntry),
		}
	}
	return l
}

// getShard returns the shard for the given key.
func (l *Locker) getShard(key string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%numShards]
}

// Lock blocks until key is held and returns the release function.
// Calling the release function more than once is a no-op.
func (l *Locker) Lock(key string) func() {
	shard := l.getShard(key)

	shard.mu.Lock()
	e, ok := shard.items[key]
	if !ok {
		e = &lockEntry{}
		shard.items[key] = e
	}
	e.refs++
	shard.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			shard.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(shard.items, key)
			}
			shard.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Locker) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		s := l.shards[i]
		s.mu.Lock()
		total += len(s.items)
		s.mu.Unlock()
	}
	return total
}
