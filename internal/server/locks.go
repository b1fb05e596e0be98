package server

import "sync"

// numEventShards bounds the number of mutexes guarding event updates. Two
// events may share a shard; that only costs parallelism, never correctness.
const numEventShards = 128

// eventLocks serializes mutations of the same event within this process.
// The postgres store additionally row-locks inside the transaction so
// replicas serialize too.
type eventLocks struct {
	shards [numEventShards]sync.Mutex
}

// lock blocks until the shard for id is held and returns its release func.
func (l *eventLocks) lock(id string) func() {
	mu := &l.shards[hashEventID(id)%numEventShards]
	mu.Lock()
	return mu.Unlock
}

// hashEventID is 32-bit FNV-1a.
func hashEventID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
