// Command score reads a whitespace-tokenized corpus from stdin, one
// sentence per line, and reports its log-probability and perplexity under
// a model artifact produced by cmd/compile.
package main

import (
	"bufio"
	"encoding/gob"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/lm"
	"github.com/kho/g2dmap/trie"
	"github.com/kho/g2dmap/vocab"
)

type artifact struct {
	Vocab []byte
	Trie  []byte
}

func main() {
	model := flag.String("model", "", "path to a compile-produced model artifact")
	flag.Parse()
	if *model == "" {
		glog.Fatalf("score: -model is required")
	}

	f, err := os.Open(*model)
	if err != nil {
		glog.Fatalf("score: %v", err)
	}
	defer f.Close()

	var art artifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		glog.Fatalf("score: decoding artifact: %v", err)
	}

	v := &vocab.Basic{}
	if err := v.UnmarshalBinary(art.Vocab); err != nil {
		glog.Fatalf("score: restoring vocab: %v", err)
	}
	var tr trie.G2DMap
	if err := tr.UnmarshalBinary(art.Trie); err != nil {
		glog.Fatalf("score: restoring trie: %v", err)
	}
	engine := lm.New(&tr, v)

	sc := bufio.NewScanner(os.Stdin)
	var totalLogProb float64
	var numSents, numWords int
	for sc.Scan() {
		toks := strings.Fields(sc.Text())
		if len(toks) == 0 {
			continue
		}
		score := engine.ScoreTokens(toks, 1)
		totalLogProb += score
		numSents++
		numWords += len(toks)
		glog.V(1).Infof("score: sentence %q -> %g", strings.Join(toks, " "), score)
	}
	if err := sc.Err(); err != nil {
		glog.Fatalf("score: reading corpus: %v", err)
	}

	if numWords > 0 {
		fmt.Printf("%d sents, %d words\n", numSents, numWords)
		fmt.Printf("logprob=%g ppl=%g ppl1=%g\n",
			totalLogProb,
			math.Exp(-totalLogProb/float64(numSents+numWords)),
			math.Exp(-totalLogProb/float64(numWords)))
	}
}
