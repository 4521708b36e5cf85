// Package chartpool holds harvested chart sections keyed by normalized
// section name. Consumption is destructive: once a section is matched to a
// document anchor it leaves the pool, so a template that repeats the same
// heading drains successive sheets instead of reusing the first one.
package chartpool

import "strings"

type bucket[T any] struct {
	key   string
	items []T
}

// Pool is an insertion-ordered multiset.
type Pool[T any] struct {
	buckets []*bucket[T]
	index   map[string]*bucket[T]
}

func New[T any]() *Pool[T] {
	return &Pool[T]{index: make(map[string]*bucket[T])}
}

func (p *Pool[T]) Push(key string, item T) {
	b, ok := p.index[key]
	if !ok {
		b = &bucket[T]{key: key}
		p.index[key] = b
		p.buckets = append(p.buckets, b)
	}
	b.items = append(b.items, item)
}

// PopFront removes and returns the oldest item under the exact key.
func (p *Pool[T]) PopFront(key string) (T, bool) {
	var zero T
	b, ok := p.index[key]
	if !ok || len(b.items) == 0 {
		return zero, false
	}
	item := b.items[0]
	b.items = b.items[1:]
	return item, true
}

// PopSubstring scans buckets in insertion order and pops from the first
// non-empty one whose key contains the query or is contained by it. The
// matched key is returned alongside the item.
func (p *Pool[T]) PopSubstring(query string) (T, string, bool) {
	var zero T
	if query == "" {
		return zero, "", false
	}
	for _, b := range p.buckets {
		if len(b.items) == 0 {
			continue
		}
		if strings.Contains(b.key, query) || strings.Contains(query, b.key) {
			item := b.items[0]
			b.items = b.items[1:]
			return item, b.key, true
		}
	}
	return zero, "", false
}

// Len counts the items still pooled across all keys.
func (p *Pool[T]) Len() int {
	n := 0
	for _, b := range p.buckets {
		n += len(b.items)
	}
	return n
}

// Keys lists the keys of non-empty buckets in insertion order.
func (p *Pool[T]) Keys() []string {
	var keys []string
	for _, b := range p.buckets {
		if len(b.items) > 0 {
			keys = append(keys, b.key)
		}
	}
	return keys
}
