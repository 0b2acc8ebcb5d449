// Command compile reads an ARPA-format language model from stdin and
// writes a gob-encoded artifact (vocabulary + trie) to stdout, suitable
// for loading with cmd/score.
package main

import (
	"bytes"
	"encoding/gob"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/build"
	"github.com/kho/g2dmap/trie"
	"github.com/kho/g2dmap/vocab"
)

// artifact bundles the two pieces score needs, so callers only manage one
// file.
type artifact struct {
	Vocab []byte
	Trie  []byte
}

func main() {
	loadFactor := flag.Float64("load_factor", 1.5, "bucket-count multiplier for the trie")
	bitmapCache := flag.Bool("bitmap_cache", false, "enable the per-level bitmap hash cache")
	unk := flag.String("unk", "<unk>", "the unknown-word token used in the ARPA file")
	flag.Parse()

	v := vocab.NewBasic(*unk)
	tr, err := build.LoadARPA(os.Stdin, v, trie.Config{LoadFactor: *loadFactor, EnableBitmapHashCache: *bitmapCache})
	if err != nil {
		glog.Fatalf("compile: %v", err)
	}

	vocabBytes, err := v.MarshalBinary()
	if err != nil {
		glog.Fatalf("compile: marshaling vocab: %v", err)
	}
	trieBytes, err := tr.MarshalBinary()
	if err != nil {
		glog.Fatalf("compile: marshaling trie: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(artifact{Vocab: vocabBytes, Trie: trieBytes}); err != nil {
		glog.Fatalf("compile: encoding artifact: %v", err)
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		glog.Fatalf("compile: writing artifact: %v", err)
	}
	glog.V(1).Infof("compile: wrote artifact, %d vocab bytes, %d trie bytes", len(vocabBytes), len(trieBytes))
}
