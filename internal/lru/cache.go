package lru

import (
	"container/list"
	"sync"
)

type CacheIdentifier interface {
	Identifier() string
}

type listEntry[T CacheIdentifier] struct {
	id    string
	entry T
}

// Cache is a thread-safe, capacity-bounded cache of generic entries.
// The least recently used entry is evicted first.
type Cache[T CacheIdentifier] struct {
	capacity int
	mu       sync.Mutex
	order    *list.List
	index    map[string]*list.Element
	onEvict  func(T)
}

type Option[T CacheIdentifier] func(*Cache[T])

// WithEvictHandler registers fn to be called with every evicted entry.
// It is called with the cache lock held and must not call back into the cache.
func WithEvictHandler[T CacheIdentifier](fn func(T)) Option[T] {
	return func(c *Cache[T]) {
		c.onEvict = fn
	}
}

func NewCache[T CacheIdentifier](capacity int, opts ...Option[T]) *Cache[T] {
	if capacity <= 0 {
		panic("lru: capacity must be positive")
	}
	c := &Cache[T]{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[T]) addEntryUnsafe(entry T) {
	id := entry.Identifier()

	if element, ok := c.index[id]; ok {
		element.Value.(*listEntry[T]).entry = entry
		c.order.MoveToFront(element)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictUnsafe()
	}

	c.index[id] = c.order.PushFront(&listEntry[T]{id: id, entry: entry})
}

func (c *Cache[T]) evictUnsafe() {
	element := c.order.Back()
	if element == nil {
		return
	}
	c.order.Remove(element)
	le := element.Value.(*listEntry[T])
	delete(c.index, le.id)
	if c.onEvict != nil {
		c.onEvict(le.entry)
	}
}

// Add inserts or replaces the entry and marks it as the most recent.
func (c *Cache[T]) Add(entry T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addEntryUnsafe(entry)
}

func (c *Cache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

func (c *Cache[T]) GetByID(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.index[id]; ok {
		c.order.MoveToFront(element)
		return element.Value.(*listEntry[T]).entry, true
	}
	var zero T
	return zero, false
}

// GetOrCreate returns the entry stored under id, or generates, stores
// and returns a new one. generate runs with the cache locked.
func (c *Cache[T]) GetOrCreate(id string, generate func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.index[id]; ok {
		c.order.MoveToFront(element)
		return element.Value.(*listEntry[T]).entry, nil
	}

	entry, err := generate()
	if err != nil {
		return entry, err
	}

	c.addEntryUnsafe(entry)
	return entry, nil
}

func (c *Cache[T]) DeleteByID(id string) (present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.index[id]
	if !ok {
		return false
	}
	c.order.Remove(element)
	delete(c.index, id)
	return true
}

// List returns entries from the least to the most recently used.
func (c *Cache[T]) List() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]T, 0, c.order.Len())
	for element := c.order.Back(); element != nil; element = element.Prev() {
		entries = append(entries, element.Value.(*listEntry[T]).entry)
	}

	return entries
}
