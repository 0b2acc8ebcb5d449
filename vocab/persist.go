package vocab

import (
	"bytes"
	"encoding/gob"
)

// MarshalBinary serializes a Basic index field by field.
func (b *Basic) MarshalBinary() (data []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err = enc.Encode(b.unk); err != nil {
		return
	}
	if err = enc.Encode(b.id2str); err != nil {
		return
	}
	if err = enc.Encode(b.str2id); err != nil {
		return
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes a Basic index previously produced by
// MarshalBinary. b is left in an invalid state if an error is returned.
func (b *Basic) UnmarshalBinary(data []byte) (err error) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err = dec.Decode(&b.unk); err != nil {
		return
	}
	if err = dec.Decode(&b.id2str); err != nil {
		return
	}
	if err = dec.Decode(&b.str2id); err != nil {
		return
	}
	return nil
}
