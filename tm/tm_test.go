package tm

import (
	"math"
	"testing"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/lm"
	"github.com/kho/g2dmap/trie"
	"github.com/kho/g2dmap/vocab"
)

func testEngine(t *testing.T) *lm.Engine {
	t.Helper()
	v := vocab.NewBasic("<unk>")
	tr := trie.New(trie.Config{N: 1})
	tr.PreAllocate(v.Bound(), nil)
	tr.AddMGram(1, []ids.WordID{ids.Unknown}, trie.Payload{LogProb: -5.0})
	return lm.New(tr, v)
}

func baseParams() Params {
	return Params{
		FeatureWeights: [NumFeatures]float64{1, 1, 1, 1, 1},
		UnkFeatures:    [NumFeatures]float64{0.001, 0.001, 0.001, 0.001, 0.001},
		TransLimit:     2,
		MinTransProb:   0.001,
	}
}

// "a ||| b ||| 0.01 0.5 0.0005 0.5" is rejected at min_trans_prob=0.001
// because feature[2]=0.0005 < 0.001; a line with feature[2]=0.5 is kept.
func TestCountCandidateFiltersOnMinTransProb(t *testing.T) {
	e := testEngine(t)
	params := baseParams()
	params.MinTransProb = 0.001

	b := NewCountingBuilder(params, e)
	src := PhraseUID("a")

	rejected := []float64{0.01, 0.5, 0.0005, 0.5}
	if b.CountCandidate(src, rejected) {
		t.Fatalf("candidate with feature[2]=0.0005 should be rejected")
	}

	kept := []float64{0.01, 0.5, 0.5, 0.5}
	if !b.CountCandidate(src, kept) {
		t.Fatalf("candidate with feature[2]=0.5 should be kept")
	}
}

// Every kept source has |targets| <= TransLimit and every stored target's
// feature[0] and feature[2] (raw) were >= min_trans_prob.
func TestCountingBuilderRespectsTransLimitAndThreshold(t *testing.T) {
	e := testEngine(t)
	params := baseParams()
	params.TransLimit = 2
	params.MinTransProb = 0.01

	b := NewCountingBuilder(params, e)
	src := PhraseUID("cat")
	candidates := [][]float64{
		{0.9, 0.5, 0.9, 0.5},
		{0.8, 0.5, 0.8, 0.5},
		{0.7, 0.5, 0.7, 0.5}, // should be dropped: already at TransLimit
		{0.001, 0.5, 0.9, 0.5}, // below threshold
	}
	for _, raw := range candidates {
		b.CountCandidate(src, raw)
	}
	if !b.BeginSource(src) {
		t.Fatalf("expected source to survive counting")
	}
	for _, raw := range candidates {
		b.AddTarget("target", raw, []ids.WordID{ids.Unknown})
	}
	b.FinishSource()
	model := b.Finish()

	entry, ok := model.GetSourceEntry(src)
	if !ok {
		t.Fatalf("expected source entry to be kept")
	}
	if len(entry.Targets) > params.TransLimit {
		t.Fatalf("got %d targets, want <= %d", len(entry.Targets), params.TransLimit)
	}
	// All feature weights are 1, so a stored feature is log10 of its raw value.
	minLog := math.Log10(params.MinTransProb)
	for _, tgt := range entry.Targets {
		if tgt.Features[0] < minLog || tgt.Features[2] < minLog {
			t.Fatalf("stored target has feature[0]=%v or feature[2]=%v below log10(min_trans_prob)=%v", tgt.Features[0], tgt.Features[2], minLog)
		}
	}
}

// GetSourceEntry(ids.UnknownPhrase) returns a non-nil entry with exactly
// one target whose LM score equals the engine's unknown-word probability.
func TestUnknownSourceEntryIsReserved(t *testing.T) {
	e := testEngine(t)
	params := baseParams()
	b := NewCountingBuilder(params, e)
	model := b.Finish()

	entry, ok := model.GetSourceEntry(ids.UnknownPhrase)
	if !ok || entry == nil {
		t.Fatalf("expected a reserved unknown-source entry")
	}
	if len(entry.Targets) != 1 {
		t.Fatalf("expected exactly one unknown target, got %d", len(entry.Targets))
	}
	if entry.Targets[0].LMScore != e.UnknownLogProb() {
		t.Fatalf("unknown target LM score = %v, want %v", entry.Targets[0].LMScore, e.UnknownLogProb())
	}
}

func TestLimitingBuilderBoundedAndRanked(t *testing.T) {
	e := testEngine(t)
	params := baseParams()
	params.TransLimit = 2
	params.MinTransProb = 0.001

	b := NewLimitingBuilder(params, e)
	src := PhraseUID("dog")
	b.AddCandidate(src, "low", []float64{0.01, 0.5, 0.01, 0.5}, []ids.WordID{ids.Unknown})
	b.AddCandidate(src, "high", []float64{0.9, 0.5, 0.9, 0.5}, []ids.WordID{ids.Unknown})
	b.AddCandidate(src, "mid", []float64{0.3, 0.5, 0.3, 0.5}, []ids.WordID{ids.Unknown})

	model := b.Finish()
	entry, ok := model.GetSourceEntry(src)
	if !ok {
		t.Fatalf("expected source entry")
	}
	if len(entry.Targets) != params.TransLimit {
		t.Fatalf("got %d targets, want exactly %d (bounded)", len(entry.Targets), params.TransLimit)
	}
	for _, tgt := range entry.Targets {
		if tgt.Text == "low" {
			t.Fatalf("lowest-scoring candidate should have been evicted")
		}
	}
}
