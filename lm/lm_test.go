package lm

import (
	"math"
	"testing"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/trie"
	"github.com/kho/g2dmap/vocab"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func buildVocab(words ...string) (*vocab.Basic, map[string]ids.WordID) {
	v := vocab.NewBasic("<unk>")
	m := map[string]ids.WordID{}
	for _, w := range words {
		m[w] = v.RegisterWord(w)
	}
	return v, m
}

// A trie with only the unigram <unk> -> (-5.0, 0.0); querying an unseen
// word at min_level=1 returns exactly -5.0.
func TestUnigramLookupFallsBackToUnknown(t *testing.T) {
	v := vocab.NewBasic("<unk>")
	tr := trie.New(trie.Config{N: 1, LoadFactor: 1.5})
	tr.PreAllocate(v.Bound(), nil)
	tr.AddMGram(1, []ids.WordID{ids.Unknown}, trie.Payload{LogProb: -5.0, BackOff: 0.0})

	e := New(tr, v)
	got := e.ScoreTokens([]string{"banana"}, 1)
	if !almostEqual(got, -5.0) {
		t.Fatalf("got %v, want -5.0", got)
	}
}

// Unigrams a -> (-1.0,-0.5), b -> (-2.0,0.0); no bigram "a b" stored.
// Querying ["a","b"] at min_level=2 backs off: payload(b).log_prob +
// payload(a).back_off = -2.5.
func TestBigramBacksOffToUnigram(t *testing.T) {
	v, ix := buildVocab("a", "b")
	tr := trie.New(trie.Config{N: 2, LoadFactor: 1.5})
	tr.PreAllocate(v.Bound(), map[int]int{2: 1})
	tr.AddMGram(1, []ids.WordID{ix["a"]}, trie.Payload{LogProb: -1.0, BackOff: -0.5})
	tr.AddMGram(1, []ids.WordID{ix["b"]}, trie.Payload{LogProb: -2.0, BackOff: 0.0})
	tr.PostGrams(2)

	e := New(tr, v)
	got := e.ScoreIDs([]ids.WordID{ix["a"], ix["b"]}, 2)
	if !almostEqual(got, -2.5) {
		t.Fatalf("got %v, want -2.5", got)
	}
}

// As the bigram back-off case above, plus trigram "a b c" with
// log_prob=-0.7 and unigram c -> (-3.0, 0.0). Querying ["a","b","c"] at
// min_level=3 hits the trigram directly: -0.7.
func TestTrigramDirectHit(t *testing.T) {
	v, ix := buildVocab("a", "b", "c")
	tr := trie.New(trie.Config{N: 3, LoadFactor: 1.5})
	tr.PreAllocate(v.Bound(), map[int]int{2: 1, 3: 1})
	tr.AddMGram(1, []ids.WordID{ix["a"]}, trie.Payload{LogProb: -1.0, BackOff: -0.5})
	tr.AddMGram(1, []ids.WordID{ix["b"]}, trie.Payload{LogProb: -2.0, BackOff: 0.0})
	tr.AddMGram(1, []ids.WordID{ix["c"]}, trie.Payload{LogProb: -3.0, BackOff: 0.0})
	tr.PostGrams(2)
	tr.AddMGram(3, []ids.WordID{ix["a"], ix["b"], ix["c"]}, trie.Payload{LogProb: -0.7})
	tr.PostGrams(3)

	e := New(tr, v)
	got := e.ScoreIDs([]ids.WordID{ix["a"], ix["b"], ix["c"]}, 3)
	if !almostEqual(got, -0.7) {
		t.Fatalf("got %v, want -0.7", got)
	}
}

// When an m-gram is present in the trie, the engine returns exactly its
// stored log_prob, never invoking back-off.
func TestBackOffIdentity(t *testing.T) {
	v, ix := buildVocab("a", "b")
	tr := trie.New(trie.Config{N: 2, LoadFactor: 1.5})
	tr.PreAllocate(v.Bound(), map[int]int{2: 1})
	tr.AddMGram(1, []ids.WordID{ix["a"]}, trie.Payload{LogProb: -1.0, BackOff: -9.0})
	tr.AddMGram(1, []ids.WordID{ix["b"]}, trie.Payload{LogProb: -2.0, BackOff: 0.0})
	tr.AddMGram(2, []ids.WordID{ix["a"], ix["b"]}, trie.Payload{LogProb: -0.3})
	tr.PostGrams(2)

	e := New(tr, v)
	got := e.ScoreIDs([]ids.WordID{ix["a"], ix["b"]}, 2)
	if !almostEqual(got, -0.3) {
		t.Fatalf("expected stored bigram log_prob -0.3 with no back-off applied, got %v", got)
	}
}

// Resuming a Context token by token must total the same as one batch query.
func TestContextResumptionMatchesBatch(t *testing.T) {
	v, ix := buildVocab("a", "b", "c")
	tr := trie.New(trie.Config{N: 3, LoadFactor: 1.5})
	tr.PreAllocate(v.Bound(), map[int]int{2: 2, 3: 1})
	tr.AddMGram(1, []ids.WordID{ix["a"]}, trie.Payload{LogProb: -1.0, BackOff: -0.1})
	tr.AddMGram(1, []ids.WordID{ix["b"]}, trie.Payload{LogProb: -2.0, BackOff: -0.2})
	tr.AddMGram(1, []ids.WordID{ix["c"]}, trie.Payload{LogProb: -3.0, BackOff: 0.0})
	tr.AddMGram(2, []ids.WordID{ix["a"], ix["b"]}, trie.Payload{LogProb: -0.3, BackOff: -0.05})
	tr.PostGrams(2)
	tr.AddMGram(3, []ids.WordID{ix["a"], ix["b"], ix["c"]}, trie.Payload{LogProb: -0.7})
	tr.PostGrams(3)

	e := New(tr, v)
	seq := []ids.WordID{ix["a"], ix["b"], ix["c"]}
	batch := e.ScoreIDs(seq, 1)

	ctx := e.NewContext()
	incremental := ctx.Extend(seq[:1])
	incremental += ctx.Extend(seq[1:2])
	incremental += ctx.Extend(seq[2:3])
	if !almostEqual(batch, incremental) {
		t.Fatalf("incremental scoring %v != batch scoring %v", incremental, batch)
	}
}
