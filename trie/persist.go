package trie

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/ids"
	"github.com/kho/g2dmap/mgramid"
)

// gobEntry is one level>1 m-gram, decoded back to its word-id tuple so it
// survives round-tripping through gob without depending on mgramid's
// internal byte layout remaining stable across versions.
type gobEntry struct {
	WordIDs []ids.WordID
	Payload Payload
}

// gobSnapshot is the on-disk representation of a frozen G2DMap: the
// configuration needed to rebuild bucket counts, the raw unigram array, and
// every level's entries in replay order.
type gobSnapshot struct {
	Cfg     Config
	Unigram []Payload
	Levels  [][]gobEntry // Levels[0] is level 2, ..., Levels[N-2] is level N
}

// MarshalBinary serializes a frozen G2DMap with gob. This is not
// particularly fast for large models; it trades speed for portability
// across Go versions, since it never reinterprets raw struct bytes.
func (g *G2DMap) MarshalBinary() ([]byte, error) {
	if !g.frozen {
		return nil, glogAndErr("trie: MarshalBinary called on a non-frozen G2DMap (PostGrams(N) not yet called)")
	}
	snap := gobSnapshot{
		Cfg:     g.cfg,
		Unigram: g.unigram,
		Levels:  make([][]gobEntry, len(g.levels)),
	}
	for i, ls := range g.levels {
		level := i + 2
		var entries []gobEntry
		for b := range ls.buckets {
			for _, e := range ls.buckets[b].entries.Slice() {
				entries = append(entries, gobEntry{WordIDs: mgramid.Decode(level, e.id), Payload: e.payload})
			}
		}
		snap.Levels[i] = entries
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary rebuilds a G2DMap from MarshalBinary's output by
// replaying PreAllocate/AddMGram/PostGrams in the same order a builder
// would, rather than reconstructing bucket arrays directly, so the
// bitmap-hash-cache and bucket-sizing logic always stay in sync with New.
func (g *G2DMap) UnmarshalBinary(data []byte) error {
	var snap gobSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	*g = *New(snap.Cfg)
	counts := make(map[int]int, len(snap.Levels))
	for i, entries := range snap.Levels {
		counts[i+2] = len(entries)
	}
	g.PreAllocate(ids.WordID(len(snap.Unigram)), counts)
	copy(g.unigram, snap.Unigram)
	g.PostGrams(1)
	for i, entries := range snap.Levels {
		level := i + 2
		for _, e := range entries {
			g.AddMGram(level, e.WordIDs, e.Payload)
		}
		g.PostGrams(level)
	}
	glog.V(1).Infof("trie: restored G2DMap from snapshot: N=%d, %d unigrams", g.cfg.N, len(snap.Unigram))
	return nil
}

type persistError string

func (e persistError) Error() string { return string(e) }

func glogAndErr(msg string) error {
	glog.Warningf("%s", msg)
	return persistError(msg)
}
