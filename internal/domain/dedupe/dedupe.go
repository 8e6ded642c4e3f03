// Package dedupe remembers idempotency keys so a retried submission is
// answered with the result of the first one instead of being applied twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps idempotency keys to the id of the entity they produced.
type Deduper interface {
	// SeenAndRecord atomically looks key up and, when it is new, stores value
	// under it. It returns the stored value and true when key was already
	// known, or value and false when it was just recorded.
	SeenAndRecord(ctx context.Context, key, value string) (string, bool)

	// Unrecord forgets key so a failed submission can be retried.
	Unrecord(ctx context.Context, key string)

	// Reset forgets every key.
	Reset(ctx context.Context)

	Size() int64
}

// entry is a node of the insertion-ordered list. head is the newest entry,
// tail the oldest and first to be evicted.
type entry struct {
	key        string
	value      string
	prev, next *entry
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*entry
	head    *entry
	tail    *entry
	maxSize int // <= 0 means unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper returns a Deduper kept in process memory. By default it
// holds at most 50000 keys and evicts the oldest when full.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*entry)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key, value string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[key]; ok {
		return e.value, true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	e := &entry{key: key, value: value, next: d.head}
	if d.head != nil {
		d.head.prev = e
	}
	d.head = e
	if d.tail == nil {
		d.tail = e
	}
	d.seen[key] = e
	d.size.Add(1)
	return value, false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[key]; ok {
		d.unlink(e)
	}
}

func (d *inMemoryDeduper) Reset(_ context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen = make(map[string]*entry)
	d.head, d.tail = nil, nil
	d.size.Store(0)
}

// evictOldest drops the tail. Caller holds d.mu.
func (d *inMemoryDeduper) evictOldest() {
	if d.tail != nil {
		d.unlink(d.tail)
	}
}

// unlink removes e from the list and the index. Caller holds d.mu.
func (d *inMemoryDeduper) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		d.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		d.tail = e.prev
	}
	e.prev, e.next = nil, nil
	delete(d.seen, e.key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
