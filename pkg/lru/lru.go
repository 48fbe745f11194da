// Package lru implements a fixed-capacity least-recently-used cache whose slots
// are preallocated and reused.
//
// Slots live in an arena owned by the [Cache]; nodes are linked by integer
// handles into a circular recency list (head is the most recently used) and a
// free stack. A map from key to handle replaces the bucket chains of a classic
// intrusive hash table, so lookup, insertion and eviction are all O(1).
//
// When a key is inserted into a full cache, the least recently used slot is
// handed to the caller's [EvictFunc] before it is re-keyed, giving the caller a
// chance to persist the victim's contents. The slot value itself is reused as
// is; callers that need a clean slot must reset it.
//
// A Cache is not safe for concurrent use.
package lru

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel is the key carried by free nodes. It cannot be inserted.
const Sentinel uint32 = math.MaxUint32

const nilHandle int32 = -1

var (
	// ErrInvalidCapacity is returned by [New] when capacity is < 1.
	ErrInvalidCapacity = errors.New("lru: capacity must be at least 1")

	// ErrSentinelKey is returned by [Cache.Set] when key equals [Sentinel].
	ErrSentinelKey = errors.New("lru: sentinel key")
)

// EvictFunc is invoked with the victim's key and slot before the slot is
// reassigned. A non-nil error aborts the insertion and leaves the victim cached.
type EvictFunc[T any] func(key uint32, slot *T) error

type node[T any] struct {
	key  uint32
	prev int32
	next int32
	slot T
}

// Cache is an LRU cache of capacity slots of type T keyed by uint32.
type Cache[T any] struct {
	nodes []node[T]
	index map[uint32]int32
	head  int32
	free  int32
}

// New returns a cache with capacity slots, each initialised by newSlot.
// newSlot may be nil, in which case slots start as the zero value of T.
func New[T any](capacity int, newSlot func() T) (*Cache[T], error) {
	if capacity < 1 || capacity > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	c := &Cache[T]{
		nodes: make([]node[T], capacity),
		index: make(map[uint32]int32, capacity),
		head:  nilHandle,
		free:  nilHandle,
	}

	for i := capacity - 1; i >= 0; i-- {
		n := &c.nodes[i]
		n.key = Sentinel
		n.prev = nilHandle
		n.next = c.free

		if newSlot != nil {
			n.slot = newSlot()
		}

		c.free = int32(i)
	}

	return c, nil
}

// NewBuffers returns a cache whose slots are byte buffers of slotSize bytes.
func NewBuffers(slotSize, capacity int) (*Cache[[]byte], error) {
	if slotSize < 0 {
		return nil, fmt.Errorf("lru: negative slot size %d", slotSize)
	}

	return New(capacity, func() []byte { return make([]byte, slotSize) })
}

// Len returns the number of live entries.
func (c *Cache[T]) Len() int {
	return len(c.index)
}

// Cap returns the number of slots.
func (c *Cache[T]) Cap() int {
	return len(c.nodes)
}

// Contains reports whether key is cached without touching recency.
func (c *Cache[T]) Contains(key uint32) bool {
	_, ok := c.index[key]

	return ok
}

// Get returns the slot for key and marks it most recently used.
func (c *Cache[T]) Get(key uint32) (*T, bool) {
	h, ok := c.index[key]
	if !ok {
		return nil, false
	}

	c.touch(h)

	return &c.nodes[h].slot, true
}

// Set returns the slot for key, claiming a free slot or evicting the least
// recently used entry when key is not cached. The returned slot holds whatever
// the previous occupant left in it.
func (c *Cache[T]) Set(key uint32, evict EvictFunc[T]) (*T, error) {
	if key == Sentinel {
		return nil, ErrSentinelKey
	}

	if slot, ok := c.Get(key); ok {
		return slot, nil
	}

	h := c.free
	if h != nilHandle {
		c.free = c.nodes[h].next
	} else {
		h = c.nodes[c.head].prev
		victim := &c.nodes[h]

		if evict != nil {
			err := evict(victim.key, &victim.slot)
			if err != nil {
				return nil, fmt.Errorf("lru: evict key %d: %w", victim.key, err)
			}
		}

		delete(c.index, victim.key)
		c.unlink(h)
	}

	n := &c.nodes[h]
	n.key = key
	c.index[key] = h
	c.pushHead(h)

	return &n.slot, nil
}

// ForEach calls fn for every live entry from most to least recently used.
// Iteration stops at the first non-nil error, which is returned. fn must not
// call Set or Get on the cache.
func (c *Cache[T]) ForEach(fn func(key uint32, slot *T) error) error {
	if c.head == nilHandle {
		return nil
	}

	h := c.head
	for {
		n := &c.nodes[h]

		err := fn(n.key, &n.slot)
		if err != nil {
			return err
		}

		h = n.next
		if h == c.head {
			return nil
		}
	}
}

// Keys returns the live keys from most to least recently used.
func (c *Cache[T]) Keys() []uint32 {
	keys := make([]uint32, 0, len(c.index))

	_ = c.ForEach(func(key uint32, _ *T) error {
		keys = append(keys, key)

		return nil
	})

	return keys
}

func (c *Cache[T]) touch(h int32) {
	if c.head == h {
		return
	}

	c.unlink(h)
	c.pushHead(h)
}

// pushHead inserts a detached node at the head of the recency list.
func (c *Cache[T]) pushHead(h int32) {
	n := &c.nodes[h]

	if c.head == nilHandle {
		n.prev, n.next = h, h
		c.head = h

		return
	}

	head := &c.nodes[c.head]
	tail := head.prev

	n.prev = tail
	n.next = c.head
	c.nodes[tail].next = h
	head.prev = h
	c.head = h
}

// unlink detaches a node from the recency list.
func (c *Cache[T]) unlink(h int32) {
	n := &c.nodes[h]

	if n.next == h {
		// Sole member of the list.
		c.head = nilHandle
	} else {
		c.nodes[n.prev].next = n.next
		c.nodes[n.next].prev = n.prev

		if c.head == h {
			c.head = n.next
		}
	}

	n.prev, n.next = nilHandle, nilHandle
}
