// Package tm implements the translation (phrase) model: a
// source-phrase-uid-keyed table of bounded, score-filtered target lists,
// built either by a two-pass counting builder or a single-pass bounded
// top-K builder.
package tm

import (
	"math"
	"sort"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/lm"
	"github.com/kho/g2dmap/xhash"
)

// NumFeatures is the fixed TM feature vector width: inverse phrase
// translation probability, inverse lexical weighting, direct phrase
// translation probability, direct lexical weighting, and an optional
// phrase penalty.
const NumFeatures = 5

// PhraseUID computes the phrase uid for a (trimmed) surface phrase,
// clamped away from ids.UndefinedPhrase.
func PhraseUID(phrase string) ids.PhraseUID {
	uid := ids.PhraseUID(xhash.String64(phrase))
	if uid == ids.UndefinedPhrase {
		uid = ids.UnknownPhrase + 1
	}
	return uid
}

// TargetEntry is one scored translation candidate for a source phrase.
type TargetEntry struct {
	Text     string
	UID      ids.PhraseUID
	Features [NumFeatures]float64
	WordIDs  []ids.WordID
	LMScore  float64
}

// SourceEntry is the full translation candidate list for one source
// phrase.
type SourceEntry struct {
	UID     ids.PhraseUID
	Targets []TargetEntry
}

// Model is the read-only, queried-by-uid phrase table.
type Model struct {
	entries map[ids.PhraseUID]*SourceEntry
}

// GetSourceEntry returns the entry for uid, or (nil, false) if it was never
// kept (neither during build nor as the reserved unknown-source entry).
func (m *Model) GetSourceEntry(uid ids.PhraseUID) (*SourceEntry, bool) {
	e, ok := m.entries[uid]
	return e, ok
}

// Len returns the number of source entries, including the reserved unknown
// entry.
func (m *Model) Len() int { return len(m.entries) }

// Params holds the per-model TM tuning parameters.
type Params struct {
	FeatureWeights [NumFeatures]float64 // tm_feature_weights[0..4], lambda_i
	UnkFeatures    [NumFeatures]float64 // tm_unk_features[0..4], each > 0
	UnkTargetText  string
	TransLimit     int     // tm_trans_lim
	MinTransProb   float64 // tm_min_trans_prob
}

func postProcessFeatures(raw []float64, weights [NumFeatures]float64) [NumFeatures]float64 {
	var out [NumFeatures]float64
	for i := 0; i < len(raw) && i < NumFeatures; i++ {
		out[i] = math.Log10(raw[i]) * weights[i]
	}
	return out
}

// passesThreshold applies the feature[0]/feature[2] filter: both must be
// >= minProb when present (raw, pre-log values).
func passesThreshold(raw []float64, minProb float64) bool {
	if len(raw) > 0 && raw[0] < minProb {
		return false
	}
	if len(raw) > 2 && raw[2] < minProb {
		return false
	}
	return true
}

func unknownSourceEntry(params Params, lmEngine *lm.Engine) *SourceEntry {
	target := params.UnkTargetText
	if target == "" {
		target = "<unk>"
	}
	return &SourceEntry{
		UID: ids.UnknownPhrase,
		Targets: []TargetEntry{{
			Text:     target,
			UID:      PhraseUID(target),
			Features: postProcessFeatures(params.UnkFeatures[:], params.FeatureWeights),
			LMScore:  lmEngine.UnknownLogProb(),
		}},
	}
}

// CountingBuilder implements a two-pass build contract: a counting pass
// establishes each surviving source phrase's exact target count so the
// insertion pass can size its slice once, with no reallocation.
type CountingBuilder struct {
	params  Params
	lm      *lm.Engine
	counts  map[ids.PhraseUID]int
	entries map[ids.PhraseUID]*SourceEntry
	current *SourceEntry
	capLeft int
}

// NewCountingBuilder constructs a fresh two-pass builder. lmEngine is used
// to score each surviving target's word-id sequence and to provide the
// unknown-word probability for the reserved unknown-source entry.
func NewCountingBuilder(params Params, lmEngine *lm.Engine) *CountingBuilder {
	return &CountingBuilder{
		params:  params,
		lm:      lmEngine,
		counts:  map[ids.PhraseUID]int{},
		entries: map[ids.PhraseUID]*SourceEntry{},
	}
}

// CountCandidate is pass 1: it records that source has one more surviving
// target, provided the running count has not yet hit TransLimit and raw
// passes the feature[0]/feature[2] threshold. Returns whether it was
// counted.
func (b *CountingBuilder) CountCandidate(source ids.PhraseUID, raw []float64) bool {
	if b.counts[source] >= b.params.TransLimit {
		return false
	}
	if !passesThreshold(raw, b.params.MinTransProb) {
		return false
	}
	b.counts[source]++
	return true
}

// BeginSource opens pass 2 for source, sizing its target slice exactly to
// the surviving count pass 1 recorded. Returns false if source had zero
// surviving targets (drop it entirely).
func (b *CountingBuilder) BeginSource(source ids.PhraseUID) bool {
	n := b.counts[source]
	if n == 0 {
		return false
	}
	b.current = &SourceEntry{UID: source, Targets: make([]TargetEntry, 0, n)}
	b.capLeft = n
	return true
}

// AddTarget is pass 2's per-line step: re-checks the threshold, computes
// the post-processed feature vector and the target's LM score, and appends
// it to the currently open source entry. Returns false if the target was
// filtered out or the entry is already at capacity.
func (b *CountingBuilder) AddTarget(text string, raw []float64, wordIDs []ids.WordID) bool {
	if b.current == nil {
		panic("tm: AddTarget called with no open source entry")
	}
	if len(b.current.Targets) >= b.capLeft {
		return false
	}
	if !passesThreshold(raw, b.params.MinTransProb) {
		return false
	}
	b.current.Targets = append(b.current.Targets, TargetEntry{
		Text:     text,
		UID:      PhraseUID(text),
		Features: postProcessFeatures(raw, b.params.FeatureWeights),
		WordIDs:  wordIDs,
		LMScore:  b.lm.ScoreIDs(wordIDs, 1),
	})
	return true
}

// FinishSource closes the currently open source entry, storing it in the
// model under construction.
func (b *CountingBuilder) FinishSource() {
	if b.current == nil {
		panic("tm: FinishSource called with no open source entry")
	}
	b.entries[b.current.UID] = b.current
	b.current = nil
}

// Finish adds the reserved unknown-source entry and returns the built
// model. The builder must not be used afterward.
func (b *CountingBuilder) Finish() *Model {
	b.entries[ids.UnknownPhrase] = unknownSourceEntry(b.params, b.lm)
	glog.V(1).Infof("tm: counting builder: %d source entries (incl. unknown)", len(b.entries))
	return &Model{entries: b.entries}
}

// candidate is the limiting builder's per-target scratch record, held only
// until Finish flushes it into a TargetEntry.
type candidate struct {
	text    string
	raw     []float64
	wordIDs []ids.WordID
	score   float64 // aggregate weighted log score used as the ordering key
}

// LimitingBuilder implements an alternative single-pass build strategy: it
// maintains, per source phrase, a bounded ordered list of at most
// TransLimit candidates ranked by an aggregate weighted log score, evicting
// the worst entry when a better one arrives, then flushes to final
// storage.
type LimitingBuilder struct {
	params Params
	lm     *lm.Engine
	lists  map[ids.PhraseUID][]candidate
}

// NewLimitingBuilder constructs a fresh single-pass bounded-list builder.
func NewLimitingBuilder(params Params, lmEngine *lm.Engine) *LimitingBuilder {
	return &LimitingBuilder{params: params, lm: lmEngine, lists: map[ids.PhraseUID][]candidate{}}
}

func aggregateScore(features [NumFeatures]float64) float64 {
	var sum float64
	for _, f := range features {
		sum += f
	}
	return sum
}

// AddCandidate offers a (source, target) pair. If raw fails the
// feature[0]/feature[2] threshold it is dropped; otherwise it is inserted
// into source's bounded list, evicting the current worst entry if the list
// is already at TransLimit and the new candidate outranks it.
func (b *LimitingBuilder) AddCandidate(source ids.PhraseUID, text string, raw []float64, wordIDs []ids.WordID) {
	if !passesThreshold(raw, b.params.MinTransProb) {
		return
	}
	c := candidate{
		text:    text,
		raw:     append([]float64(nil), raw...),
		wordIDs: wordIDs,
		score:   aggregateScore(postProcessFeatures(raw, b.params.FeatureWeights)),
	}
	list := b.lists[source]
	if len(list) < b.params.TransLimit {
		b.lists[source] = insertSorted(list, c)
		return
	}
	if len(list) > 0 && c.score > list[len(list)-1].score {
		list[len(list)-1] = c
		b.lists[source] = insertSorted(list[:len(list)-1], c)
	}
}

// insertSorted inserts c into list (sorted descending by score) and
// returns the result, which is one entry longer than list; it applies no
// cap of its own (AddCandidate enforces TransLimit before calling this).
func insertSorted(list []candidate, c candidate) []candidate {
	list = append(list, c)
	sort.Slice(list, func(i, j int) bool { return list[i].score > list[j].score })
	return list
}

// Finish scores every surviving candidate's LM weight, flushes the bounded
// lists into final SourceEntry storage, adds the reserved unknown-source
// entry, and returns the built model.
func (b *LimitingBuilder) Finish() *Model {
	entries := make(map[ids.PhraseUID]*SourceEntry, len(b.lists)+1)
	for uid, list := range b.lists {
		if len(list) == 0 {
			continue
		}
		targets := make([]TargetEntry, len(list))
		for i, c := range list {
			targets[i] = TargetEntry{
				Text:     c.text,
				UID:      PhraseUID(c.text),
				Features: postProcessFeatures(c.raw, b.params.FeatureWeights),
				WordIDs:  c.wordIDs,
				LMScore:  b.lm.ScoreIDs(c.wordIDs, 1),
			}
		}
		entries[uid] = &SourceEntry{UID: uid, Targets: targets}
	}
	entries[ids.UnknownPhrase] = unknownSourceEntry(b.params, b.lm)
	glog.V(1).Infof("tm: limiting builder: %d source entries (incl. unknown)", len(entries))
	return &Model{entries: entries}
}
