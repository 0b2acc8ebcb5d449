// Package phash implements a fixed-size, pre-sized, linear-probing,
// open-addressing hash map: buckets of element indices, pointing into a
// separately allocated, sequentially filled elements array. Element index 0
// is reserved as the "empty" sentinel.
package phash

import (
	"math"

	"github.com/kho/g2dmap/xhash"
)

const noElement = 0

// Map is a fixed-capacity hash map for n payload slots. It must be
// constructed with New; the zero value is not usable.
type Map[V any] struct {
	buckets        []uint32
	mask           uint64
	keys           []uint64
	values         []V
	nextElem       uint32
	maxElem        uint32
}

// New creates a Map sized for n payloads with the given buckets factor
// (must be >= 1.0; values below 1.0 are replaced by 1.5). Bucket count is
// the next power of two >= bucketsFactor * (n+1).
func New[V any](n int, bucketsFactor float64) *Map[V] {
	if bucketsFactor < 1.0 {
		bucketsFactor = 1.5
	}
	numBuckets := xhash.NextPow2(uint64(math.Ceil(float64(n+1) * bucketsFactor)))
	m := &Map[V]{
		buckets:  make([]uint32, numBuckets),
		mask:     numBuckets - 1,
		keys:     make([]uint64, n+1),
		values:   make([]V, n+1),
		nextElem: 1,
		maxElem:  uint32(n),
	}
	return m
}

func (m *Map[V]) bucketOf(hash uint64) uint64 {
	return xhash.Mix64(hash) & m.mask
}

func (m *Map[V]) nextBucket(b uint64) uint64 {
	return (b + 1) & m.mask
}

// Add inserts a brand-new entry for hash/key and returns a pointer to its
// (zero-valued) payload for the caller to fill in. It panics if capacity is
// exhausted: capacity is fixed at construction time, so running out is a
// configuration error, not a runtime condition to recover from.
// Add does not check whether the key already exists; callers that need
// find-or-insert semantics should call Get first.
func (m *Map[V]) Add(hash uint64, key uint64) *V {
	if m.nextElem > m.maxElem {
		panic("phash: capacity exhausted")
	}
	b := m.bucketOf(hash)
	for m.buckets[b] != noElement {
		b = m.nextBucket(b)
	}
	idx := m.nextElem
	m.nextElem++
	m.buckets[b] = idx
	m.keys[idx] = key
	return &m.values[idx]
}

// Get probes until either a key match or an empty bucket is found.
func (m *Map[V]) Get(hash uint64, key uint64) (*V, bool) {
	b := m.bucketOf(hash)
	for m.buckets[b] != noElement {
		idx := m.buckets[b]
		if m.keys[idx] == key {
			return &m.values[idx], true
		}
		b = m.nextBucket(b)
	}
	return nil, false
}

// Len returns the number of entries inserted so far.
func (m *Map[V]) Len() int { return int(m.nextElem) - 1 }

// Cap returns the total payload capacity the map was sized for.
func (m *Map[V]) Cap() int { return int(m.maxElem) }
