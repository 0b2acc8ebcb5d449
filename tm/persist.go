package tm

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"

	"github.com/kho/g2dmap/ids"
)

// MarshalBinary serializes a built Model with gob: TargetEntry and
// SourceEntry are already built from exported fields, so no replay step is
// needed the way trie.G2DMap's bucket layout requires.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m.entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a Model previously produced by MarshalBinary.
func (m *Model) UnmarshalBinary(data []byte) error {
	entries := make(map[ids.PhraseUID]*SourceEntry)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return err
	}
	m.entries = entries
	glog.V(1).Infof("tm: restored model from snapshot: %d source entries", len(entries))
	return nil
}
