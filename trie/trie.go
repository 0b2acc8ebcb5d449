// Package trie implements the G2DMap trie family: per-level hash-bucketed
// storage of m-gram payloads, keyed by the compressed m-gram id (package
// mgramid) and an optional Bloom-style negative cache.
package trie

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/golang/glog"

	"github.com/kho/g2dmap/dynarray"
	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/mgramid"
	"github.com/kho/g2dmap/xhash"
)

// Payload is the (log-probability, back-off) pair stored per m-gram.
// BackOff is meaningless (and left at ZeroBackOff) for m == N entries, which
// only ever carry a probability.
type Payload struct {
	LogProb float32
	BackOff float32
}

// UnknownLogProb is the sentinel "unknown-like" low probability assigned to
// the unigram entry for ids.Unknown before the loader overwrites it
// (approx. ln(1e-100), a vanishingly small but finite per-step probability).
const UnknownLogProb float32 = -230.2585

// ZeroBackOff is the reserved back-off weight paired with UnknownLogProb.
const ZeroBackOff float32 = 0

// ZeroPayload is the reserved sentinel payload for unknown-like entries.
var ZeroPayload = Payload{LogProb: UnknownLogProb, BackOff: ZeroBackOff}

// Status is the three-valued result of a trie lookup: a missing key is not
// an error, it is a distinct status value.
type Status int

const (
	Found Status = iota
	NotFound
	EndUnknown
)

func (s Status) String() string {
	switch s {
	case Found:
		return "Found"
	case NotFound:
		return "NotFound"
	case EndUnknown:
		return "EndUnknown"
	default:
		return "Status(?)"
	}
}

type entry struct {
	id      mgramid.ID
	payload Payload
}

type bucket struct {
	entries *dynarray.Stack[entry]
	sorted  bool
}

func newBucket() *bucket {
	return &bucket{entries: dynarray.New[entry](dynarray.Linear, 1.5, 1)}
}

// findUnsorted scans a not-yet-sorted bucket for an existing entry with the
// same id, used by AddMGram to detect and warn about overwritten m-grams.
func (b *bucket) findUnsorted(level int, id mgramid.ID) *entry {
	data := b.entries.Slice()
	for i := range data {
		if mgramid.Compare(level, data[i].id, id) == 0 {
			return &data[i]
		}
	}
	return nil
}

func (b *bucket) find(level int, id mgramid.ID) (Payload, bool) {
	data := b.entries.Slice()
	n := len(data)
	switch {
	case n == 0:
		return Payload{}, false
	case n <= 2:
		for i := range data {
			if mgramid.Compare(level, data[i].id, id) == 0 {
				return data[i].payload, true
			}
		}
		return Payload{}, false
	default:
		idx, found := b.entries.BinarySearch(func(e entry) int {
			return mgramid.Compare(level, id, e.id)
		})
		if !found {
			return Payload{}, false
		}
		return data[idx].payload, true
	}
}

type levelState struct {
	buckets     []bucket
	mask        uint64
	bitmap      *bitset.BitSet
	bitmapMask  uint64
	preAllocked bool
	postDone    bool
}

// Config holds the per-model trie tuning parameters.
type Config struct {
	// N is the maximum m-gram level modeled.
	N int
	// LoadFactor is the default bucket-count multiplier (>= 1.0) applied to
	// the per-level m-gram count when deciding bucket counts.
	LoadFactor float64
	// LoadFactors optionally overrides LoadFactor for specific levels.
	LoadFactors map[int]float64
	// EnableBitmapHashCache turns on the per-level Bloom-style negative
	// cache, trading memory for a cheap short-circuit on definite misses.
	EnableBitmapHashCache bool
}

// G2DMap is the read-mostly n-gram trie. Build it with New, drive it
// through PreAllocate -> AddMGram(level)* -> PostGrams(level) in strictly
// increasing level order, then query it concurrently from any number of
// goroutines.
type G2DMap struct {
	cfg      Config
	unigram  []Payload
	levels   []levelState // levels[0] is level 2, ..., levels[N-2] is level N
	frozen   bool
}

// New constructs an empty G2DMap for the given configuration.
func New(cfg Config) *G2DMap {
	if cfg.N < 1 {
		panic("trie: N must be >= 1")
	}
	if cfg.LoadFactor < 1.0 {
		cfg.LoadFactor = 1.0
	}
	return &G2DMap{cfg: cfg, levels: make([]levelState, maxInt(cfg.N-1, 0))}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (g *G2DMap) loadFactorFor(level int) float64 {
	if g.cfg.LoadFactors != nil {
		if f, ok := g.cfg.LoadFactors[level]; ok {
			return f
		}
	}
	return g.cfg.LoadFactor
}

// PreAllocate allocates per-level bucket arrays. vocabBound sizes the
// unigram array (direct indexing by word id); counts holds the expected
// m-gram count for each level in [2, N] used to size bucket counts as the
// next power of two >= load_factor * counts[level].
func (g *G2DMap) PreAllocate(vocabBound ids.WordID, counts map[int]int) {
	g.unigram = make([]Payload, vocabBound)
	for i := range g.unigram {
		g.unigram[i] = ZeroPayload
	}
	if int(ids.Unknown) < len(g.unigram) {
		g.unigram[ids.Unknown] = ZeroPayload
	}
	for level := 2; level <= g.cfg.N; level++ {
		n := counts[level]
		numBuckets := xhash.NextPow2(uint64(math.Ceil(float64(n) * g.loadFactorFor(level))))
		if numBuckets == 0 {
			numBuckets = 1
		}
		ls := &g.levels[level-2]
		ls.buckets = make([]bucket, numBuckets)
		for i := range ls.buckets {
			ls.buckets[i] = *newBucket()
		}
		ls.mask = numBuckets - 1
		if g.cfg.EnableBitmapHashCache {
			ls.bitmap = bitset.New(uint(numBuckets))
			ls.bitmapMask = numBuckets - 1
		}
		ls.preAllocked = true
		glog.V(1).Infof("trie: pre-allocated level %d: %d m-grams -> %d buckets", level, n, numBuckets)
	}
}

func wordIDsToUint32(ws []ids.WordID) []uint32 {
	out := make([]uint32, len(ws))
	for i, w := range ws {
		out[i] = uint32(w)
	}
	return out
}

// AddMGram stores the payload for the given level-m word-id sequence. For
// level 1 it indexes directly into the unigram array; for level > 1 it
// selects a bucket by the combined hash of the word ids, appends a new
// entry (or overwrites an existing one of the same id, with a warning), and
// — when enabled — marks the bitmap hash cache.
func (g *G2DMap) AddMGram(level int, wordIDs []ids.WordID, payload Payload) {
	if g.frozen {
		panic("trie: AddMGram called after freeze")
	}
	if len(wordIDs) != level {
		panic(fmt.Sprintf("trie: AddMGram: level %d but %d word ids given", level, len(wordIDs)))
	}
	if level == 1 {
		g.unigram[wordIDs[0]] = payload
		return
	}
	if level < 1 || level > g.cfg.N {
		panic(fmt.Sprintf("trie: AddMGram: level %d out of range [1,%d]", level, g.cfg.N))
	}
	ls := &g.levels[level-2]
	if !ls.preAllocked {
		panic("trie: AddMGram called before PreAllocate")
	}
	if ls.postDone {
		panic("trie: AddMGram called after PostGrams for this level")
	}
	h := xhash.Words64(wordIDsToUint32(wordIDs))
	b := &ls.buckets[h&ls.mask]
	id := mgramid.Encode(level, wordIDs)
	if existing := b.findUnsorted(level, id); existing != nil {
		glog.Warningf("trie: level %d: overwriting duplicate m-gram id (word ids %v) with latest payload", level, wordIDs)
		existing.payload = payload
	} else {
		*b.entries.Emplace() = entry{id: id, payload: payload}
	}
	if ls.bitmap != nil {
		ls.bitmap.Set(uint(h & ls.bitmapMask))
	}
}

// PostGrams must be called exactly once per level, after all of that
// level's AddMGram calls, and before any AddMGram at level+1 or any query
// touching this level. It shrinks and sorts every bucket by m-gram id.
func (g *G2DMap) PostGrams(level int) {
	if level == 1 {
		if g.cfg.N == 1 {
			g.frozen = true
		}
		return
	}
	ls := &g.levels[level-2]
	if !ls.preAllocked {
		panic("trie: PostGrams called before PreAllocate")
	}
	if ls.postDone {
		panic("trie: PostGrams called twice for the same level")
	}
	for i := range ls.buckets {
		b := &ls.buckets[i]
		b.entries.Shrink()
		b.entries.Sort(func(x, y entry) bool {
			return mgramid.Compare(level, x.id, y.id) < 0
		})
		b.sorted = true
	}
	ls.postDone = true
	if level == g.cfg.N {
		g.frozen = true
	}
}

// GetPayload looks up the payload for a level-len(wordIDs) sub-m-gram.
func (g *G2DMap) GetPayload(wordIDs []ids.WordID) (Payload, Status) {
	level := len(wordIDs)
	if wordIDs[len(wordIDs)-1] == ids.Unknown {
		return Payload{}, EndUnknown
	}
	if level == 1 {
		w := wordIDs[0]
		if int(w) >= len(g.unigram) {
			return Payload{}, NotFound
		}
		return g.unigram[w], Found
	}
	ls := &g.levels[level-2]
	h := xhash.Words64(wordIDsToUint32(wordIDs))
	if ls.bitmap != nil && !ls.bitmap.Test(uint(h&ls.bitmapMask)) {
		return Payload{}, NotFound
	}
	b := &ls.buckets[h&ls.mask]
	id := mgramid.Encode(level, wordIDs)
	if p, ok := b.find(level, id); ok {
		return p, Found
	}
	return Payload{}, NotFound
}

// UnigramPayload returns the raw unigram payload for w, without the
// EndUnknown short-circuit GetPayload applies. Used by the LM engine to
// read the UNK payload directly.
func (g *G2DMap) UnigramPayload(w ids.WordID) Payload {
	if int(w) >= len(g.unigram) {
		return ZeroPayload
	}
	return g.unigram[w]
}

// N returns the maximum modeled m-gram level.
func (g *G2DMap) N() int { return g.cfg.N }
