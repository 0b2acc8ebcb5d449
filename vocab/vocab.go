// Package vocab implements four word-index variants: a token <-> word-id
// mapping with optional usage-count sorting, a hashing-only variant with
// no registration table, and a linear-probing optimized variant that
// wraps either of the first two as a disposable builder.
package vocab

import (
	"sort"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/xhash"
)

// Index is the read path every word-index variant supports.
type Index interface {
	// GetWordID looks up text, returning ids.Unknown if it was never
	// registered.
	GetWordID(text string) ids.WordID
	// RegisterWord looks up text, registering it (issuing a fresh id) if it
	// was not seen before. Only meaningful when NeedsRegistration is true.
	RegisterWord(text string) ids.WordID
	// Bound returns one past the largest word id issued so far.
	Bound() ids.WordID
	NeedsRegistration() bool
	NeedsCounting() bool
	NeedsPostActions() bool
	IsContinuous() bool
}

// MutableIndex additionally exposes the lifecycle hooks used while building
// a model: Reserve ahead of the count/registration phases, CountWord during
// the counting phase, DoPostWordCount once counting is complete, and
// DoPostActions once all registration is complete.
type MutableIndex interface {
	Index
	Reserve(n int)
	CountWord(text string)
	DoPostWordCount()
	DoPostActions()
}

// Basic is a hash-map-backed word index: registration issues the next
// sequential integer id, starting at ids.FirstWordID. Continuous: yes.
type Basic struct {
	unk    string
	str2id map[string]ids.WordID
	id2str []string
}

// NewBasic constructs a Basic index with unk pre-registered at ids.Unknown.
func NewBasic(unk string) *Basic {
	b := &Basic{
		unk:    unk,
		str2id: map[string]ids.WordID{unk: ids.Unknown},
		id2str: []string{ids.Undefined: "", ids.Unknown: unk},
	}
	return b
}

func (b *Basic) Reserve(n int) {
	if b.str2id == nil {
		b.str2id = make(map[string]ids.WordID, n)
	}
}

func (b *Basic) GetWordID(text string) ids.WordID {
	if id, ok := b.str2id[text]; ok {
		return id
	}
	return ids.Unknown
}

func (b *Basic) RegisterWord(text string) ids.WordID {
	if id, ok := b.str2id[text]; ok {
		return id
	}
	id := ids.WordID(len(b.id2str))
	b.str2id[text] = id
	b.id2str = append(b.id2str, text)
	return id
}

func (b *Basic) Bound() ids.WordID { return ids.WordID(len(b.id2str)) }

func (b *Basic) NeedsRegistration() bool { return true }
func (b *Basic) NeedsCounting() bool     { return false }
func (b *Basic) NeedsPostActions() bool  { return false }
func (b *Basic) IsContinuous() bool      { return true }

func (b *Basic) CountWord(string)   { panic("vocab: Basic does not support counting") }
func (b *Basic) DoPostWordCount()   { panic("vocab: Basic does not support counting") }
func (b *Basic) DoPostActions()     {}

// Counting extends Basic with a counting phase: in DoPostWordCount it
// reissues ids so the most frequent words get the lowest ids, shrinking the
// average m-gram id byte width.
type Counting struct {
	*Basic
	counts      map[string]uint64
	postCounted bool
}

// NewCounting constructs a Counting index with unk pre-registered.
func NewCounting(unk string) *Counting {
	return &Counting{Basic: NewBasic(unk), counts: map[string]uint64{}}
}

func (c *Counting) Reserve(n int) {
	c.Basic.Reserve(n)
	if c.counts == nil {
		c.counts = make(map[string]uint64, n)
	}
}

func (c *Counting) NeedsCounting() bool { return true }

func (c *Counting) CountWord(text string) {
	if c.postCounted {
		panic("vocab: CountWord called after DoPostWordCount")
	}
	c.counts[text]++
}

// DoPostWordCount sorts words by descending count (ties broken
// lexicographically for determinism) and reissues ids starting at
// ids.FirstWordID so the most frequent word gets the lowest id.
func (c *Counting) DoPostWordCount() {
	if c.postCounted {
		panic("vocab: DoPostWordCount called twice")
	}
	words := make([]string, 0, len(c.counts))
	for w := range c.counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if c.counts[words[i]] != c.counts[words[j]] {
			return c.counts[words[i]] > c.counts[words[j]]
		}
		return words[i] < words[j]
	})
	c.Basic.str2id = map[string]ids.WordID{c.unk: ids.Unknown}
	c.Basic.id2str = []string{ids.Undefined: "", ids.Unknown: c.unk}
	for _, w := range words {
		if w == c.unk {
			continue
		}
		c.Basic.RegisterWord(w)
	}
	c.postCounted = true
	glog.V(1).Infof("vocab: Counting: reissued ids for %d words by descending frequency", len(words))
}

func (c *Counting) DoPostActions() {}

// Hashing is a table-free word index: the word id is derived directly from a
// 64-bit hash of the text, clamped so it is never ids.Undefined or
// ids.Unknown. Collisions are accepted as equal words; IsContinuous is
// false since ids are not densely packed.
type Hashing struct {
	bound ids.WordID
}

func NewHashing() *Hashing { return &Hashing{} }

func (h *Hashing) hashID(text string) ids.WordID {
	v := ids.WordID(uint32(xhash.String64(text)))
	if v == ids.Undefined || v == ids.Unknown {
		v += ids.FirstWordID
	}
	return v
}

func (h *Hashing) Reserve(int) {}

func (h *Hashing) GetWordID(text string) ids.WordID {
	id := h.hashID(text)
	if id >= h.bound {
		h.bound = id + 1
	}
	return id
}

func (h *Hashing) RegisterWord(text string) ids.WordID { return h.GetWordID(text) }
func (h *Hashing) Bound() ids.WordID                   { return h.bound }
func (h *Hashing) NeedsRegistration() bool             { return false }
func (h *Hashing) NeedsCounting() bool                 { return false }
func (h *Hashing) NeedsPostActions() bool              { return false }
func (h *Hashing) IsContinuous() bool                  { return false }
func (h *Hashing) CountWord(string)                    { panic("vocab: Hashing does not support counting") }
func (h *Hashing) DoPostWordCount()                    { panic("vocab: Hashing does not support counting") }
func (h *Hashing) DoPostActions()                      {}

// optimizingEntry is a single slot of the Optimizing index's fixed hash
// table: empty slots are recognized by an empty word string.
type optimizingEntry struct {
	word string
	id   ids.WordID
}

// Optimizing wraps a disposable Basic or Counting builder index. Once
// DoPostActions runs, entries are copied into a fixed-size open-addressing
// table sized as the next power of two >= bucketsFactor*nWords, and the
// disposable inner index is freed, trading away registration/counting
// ability for ~1-probe average lookups.
type Optimizing struct {
	disposable    Index
	bucketsFactor float64
	table         []optimizingEntry
	mask          uint64
	bound         ids.WordID
}

// NewOptimizing wraps disp (a *Basic or *Counting mid-build index).
// bucketsFactor must be >= 1.0 (values below 1.0 are replaced by 1.5).
func NewOptimizing(disp Index, bucketsFactor float64) *Optimizing {
	if bucketsFactor < 1.0 {
		bucketsFactor = 1.5
	}
	return &Optimizing{disposable: disp, bucketsFactor: bucketsFactor}
}

func (o *Optimizing) Reserve(n int) {
	if mi, ok := o.disposable.(MutableIndex); ok {
		mi.Reserve(n)
	}
}

func (o *Optimizing) NeedsRegistration() bool { return o.disposable != nil && o.disposable.NeedsRegistration() }
func (o *Optimizing) NeedsCounting() bool     { return o.disposable != nil && o.disposable.NeedsCounting() }
func (o *Optimizing) NeedsPostActions() bool  { return true }
func (o *Optimizing) IsContinuous() bool      { return false }

func (o *Optimizing) CountWord(text string) {
	o.disposable.(MutableIndex).CountWord(text)
}

func (o *Optimizing) DoPostWordCount() {
	o.disposable.(MutableIndex).DoPostWordCount()
}

func (o *Optimizing) RegisterWord(text string) ids.WordID {
	if o.disposable == nil {
		panic("vocab: Optimizing: RegisterWord called after DoPostActions")
	}
	return o.disposable.RegisterWord(text)
}

func (o *Optimizing) GetWordID(text string) ids.WordID {
	if o.disposable != nil {
		return o.disposable.GetWordID(text)
	}
	h := xhash.String64(text)
	b := xhash.Mix64(h) & o.mask
	for o.table[b].word != "" {
		if o.table[b].word == text {
			return o.table[b].id
		}
		b = (b + 1) & o.mask
	}
	return ids.Unknown
}

func (o *Optimizing) Bound() ids.WordID {
	if o.disposable != nil {
		return o.disposable.Bound()
	}
	return o.bound
}

// words reports the (text, id) pairs a Basic or Counting index holds. This
// is the only place Optimizing reaches into its inner index's internals,
// since Index itself exposes no enumeration method.
func words(idx Index) []optimizingEntry {
	switch v := idx.(type) {
	case *Counting:
		return basicEntries(v.Basic)
	case *Basic:
		return basicEntries(v)
	default:
		panic("vocab: Optimizing: unsupported disposable index type")
	}
}

func basicEntries(b *Basic) []optimizingEntry {
	out := make([]optimizingEntry, 0, len(b.id2str))
	for id, s := range b.id2str {
		if ids.WordID(id) == ids.Undefined {
			continue
		}
		out = append(out, optimizingEntry{word: s, id: ids.WordID(id)})
	}
	return out
}

// DoPostActions copies the disposable index's entries into the fixed
// open-addressing table and frees the disposable index.
func (o *Optimizing) DoPostActions() {
	o.disposable.(MutableIndex).DoPostActions()
	entries := words(o.disposable)
	o.bound = o.disposable.Bound()
	numBuckets := xhash.NextPow2(uint64(float64(len(entries)+1) * o.bucketsFactor))
	o.table = make([]optimizingEntry, numBuckets)
	o.mask = numBuckets - 1
	for _, e := range entries {
		h := xhash.String64(e.word)
		b := xhash.Mix64(h) & o.mask
		for o.table[b].word != "" {
			b = (b + 1) & o.mask
		}
		o.table[b] = e
	}
	glog.V(1).Infof("vocab: Optimizing: converted %d words into %d buckets", len(entries), numBuckets)
	o.disposable = nil // allow the disposable builder to be garbage collected
}
