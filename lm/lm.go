// Package lm implements the n-gram language-model query engine: Katz-style
// back-off scoring over a trie.G2DMap, with a resumable Context so a
// decoder can extend a partial hypothesis score one token at a time
// instead of rescoring the whole sentence.
package lm

import (
	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/trie"
	"github.com/kho/g2dmap/vocab"
)

// Engine answers LM queries against a frozen trie.G2DMap. It holds no
// mutable state of its own and is safe for concurrent use by any number of
// goroutines, each through its own Context.
type Engine struct {
	trie  *trie.G2DMap
	vocab vocab.Index
}

// New wraps t (queried with min_level=1 positions counted against its max
// level N) and v (used only by the string-based convenience methods).
func New(t *trie.G2DMap, v vocab.Index) *Engine {
	return &Engine{trie: t, vocab: v}
}

// mgramLogProb scores the level-len(ws) m-gram ws ending the requested
// window, applying Katz back-off on a miss.
func (e *Engine) mgramLogProb(ws []ids.WordID) float64 {
	p, status := e.trie.GetPayload(ws)
	if status == trie.Found {
		return float64(p.LogProb)
	}
	if len(ws) == 1 {
		// Unigram missing (or OOV): fall back to UNKNOWN_WORD_ID's payload.
		return float64(e.trie.UnigramPayload(ids.Unknown).LogProb)
	}
	return e.backOffOf(ws[:len(ws)-1]) + e.mgramLogProb(ws[1:])
}

// backOffOf returns the back-off weight of prefix, or 0 if prefix itself
// has no stored entry.
func (e *Engine) backOffOf(prefix []ids.WordID) float64 {
	p, status := e.trie.GetPayload(prefix)
	if status == trie.Found {
		return float64(p.BackOff)
	}
	return 0
}

// ScoreIDs computes sum_{i=minLevel}^{len(tokens)} log P(tokens[i] |
// tokens[max(1,i-N+1)..i-1]), with i 1-indexed into tokens. minLevel must
// be >= 1.
func (e *Engine) ScoreIDs(tokens []ids.WordID, minLevel int) float64 {
	n := e.trie.N()
	var total float64
	for i := minLevel; i <= len(tokens); i++ {
		start := i - n + 1
		if start < 1 {
			start = 1
		}
		total += e.mgramLogProb(tokens[start-1 : i])
	}
	return total
}

// ScoreTokens is ScoreIDs for callers holding surface tokens rather than
// already-resolved word ids; unseen tokens resolve to ids.Unknown.
func (e *Engine) ScoreTokens(tokens []string, minLevel int) float64 {
	ws := make([]ids.WordID, len(tokens))
	for i, t := range tokens {
		ws[i] = e.vocab.GetWordID(t)
	}
	return e.ScoreIDs(ws, minLevel)
}

// UnknownLogProb returns the probability component the engine assigns an
// out-of-vocabulary word, used by the TM builder to precompute LM features
// for the reserved unknown-target entry.
func (e *Engine) UnknownLogProb() float64 {
	return float64(e.trie.UnigramPayload(ids.Unknown).LogProb)
}

// Context lets a decoder extend a partial hypothesis's LM score
// incrementally as new right-context tokens arrive, reusing the trailing
// (N-1)-token history instead of rescoring the whole sentence each time.
// The zero value is not usable; construct with Engine.NewContext.
type Context struct {
	e    *Engine
	tail []ids.WordID
}

// NewContext starts a fresh, empty-history context.
func (e *Engine) NewContext() *Context {
	return &Context{e: e}
}

// Extend scores tokens as the next positions following the context's
// current history and advances the history by tokens, keeping only the
// trailing N-1 ids needed for future queries. The returned score is only
// the contribution of tokens, not the running total; callers accumulate it
// themselves across calls.
func (c *Context) Extend(tokens []ids.WordID) float64 {
	full := make([]ids.WordID, 0, len(c.tail)+len(tokens))
	full = append(full, c.tail...)
	full = append(full, tokens...)
	minLevel := len(c.tail) + 1
	score := c.e.ScoreIDs(full, minLevel)

	keep := c.e.trie.N() - 1
	if keep < 0 {
		keep = 0
	}
	if len(full) > keep {
		c.tail = append([]ids.WordID(nil), full[len(full)-keep:]...)
	} else {
		c.tail = full
	}
	return score
}

// Reset drops the context's history, as if it were freshly constructed.
func (c *Context) Reset() {
	c.tail = nil
}
