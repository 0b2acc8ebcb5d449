// Package mgramid implements the compressed m-gram id codec: a
// self-describing byte string that packs a variable-width word-id sequence
// so it can be compared and binary-searched without decoding.
//
// Layout: [type_bytes | word_bytes[m-1] | ... | word_bytes[0]].
// type_bytes encodes, per word, the byte width (1..4) used to store that
// word's id; words are packed starting from the last (most discriminating)
// word of the m-gram.
package mgramid

import (
	"bytes"
	"fmt"

	"github.com/kho/g2dmap/bitio"
	"github.com/kho/g2dmap/ids"
)

// ID is an owned byte slice; the type_bytes length plus per-word widths are
// fully recoverable from its first bytes given the m-gram level.
type ID []byte

// TypeBytesLen returns the number of bytes used for the type field of an
// m-gram of the given level. 1 byte covers levels 2..4 (4^m <= 256 combos),
// 2 bytes cover levels 5..6 (4^m <= 65536 combos); the formula generalizes
// beyond that range too.
func TypeBytesLen(level int) int {
	bits := 2 * level
	return (bits + 7) / 8
}

// Encode packs a length-m word-id tuple into its byte-string id. len(wordIDs)
// must equal level.
func Encode(level int, wordIDs []ids.WordID) ID {
	if len(wordIDs) != level {
		panic(fmt.Sprintf("mgramid: Encode: level %d but %d word ids given", level, len(wordIDs)))
	}
	widths := make([]uint8, level)
	var typ uint64
	mult := uint64(1)
	for i, w := range wordIDs {
		b := bitio.BytesNeeded(uint32(w))
		widths[i] = b
		typ += uint64(b-1) * mult
		mult *= 4
	}
	typeLen := TypeBytesLen(level)
	total := typeLen
	for _, w := range widths {
		total += int(w)
	}
	id := make(ID, total)
	for i := typeLen - 1; i >= 0; i-- {
		id[i] = byte(typ)
		typ >>= 8
	}
	// Pack words from index level-1 down to 0, right after the type bytes.
	off := typeLen
	for i := level - 1; i >= 0; i-- {
		w := widths[i]
		v := uint32(wordIDs[i])
		for k := int(w) - 1; k >= 0; k-- {
			id[off+k] = byte(v)
			v >>= 8
		}
		off += int(w)
	}
	return id
}

// decodeType reads the type field and per-word widths for the given level.
func decodeType(level int, id ID) (typ uint64, widths []uint8) {
	typeLen := TypeBytesLen(level)
	for i := 0; i < typeLen; i++ {
		typ = typ<<8 | uint64(id[i])
	}
	widths = make([]uint8, level)
	t := typ
	for i := 0; i < level; i++ {
		widths[i] = uint8(t&3) + 1
		t >>= 2
	}
	return
}

// LengthOf returns the total byte length of id, recovered from its type
// field alone (no need to scan the word bytes).
func LengthOf(level int, id ID) int {
	_, widths := decodeType(level, id)
	total := TypeBytesLen(level)
	for _, w := range widths {
		total += int(w)
	}
	return total
}

// Decode reconstructs the original word-id tuple from an id. It is mostly
// useful for testing the round-trip invariant; the hot query path never
// needs to decode, only to compare.
func Decode(level int, id ID) []ids.WordID {
	_, widths := decodeType(level, id)
	out := make([]ids.WordID, level)
	off := TypeBytesLen(level)
	for i := level - 1; i >= 0; i-- {
		w := widths[i]
		var v uint32
		for k := 0; k < int(w); k++ {
			v = v<<8 | uint32(id[off+k])
		}
		out[i] = ids.WordID(v)
		off += int(w)
	}
	return out
}

// Compare orders two ids of the same m-gram level: by type field first
// (numerically, which for equal-length big-endian byte strings is the same
// as comparing raw bytes), then lexicographically over the remaining key
// bytes. Equal types imply equal total length. Returns <0, 0, >0.
func Compare(level int, a, b ID) int {
	typeLen := TypeBytesLen(level)
	if c := bytes.Compare(a[:typeLen], b[:typeLen]); c != 0 {
		return c
	}
	return bytes.Compare(a[typeLen:], b[typeLen:])
}
