package mgramid

import (
	"math/rand"
	"testing"

	"github.com/kho/g2dmap/ids"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	level := 3
	wordIDs := []ids.WordID{300, 1, 70000}
	id := Encode(level, wordIDs)
	if TypeBytesLen(level) != 1 {
		t.Fatalf("type bytes len = %d, want 1", TypeBytesLen(level))
	}
	if len(id) != 7 {
		t.Fatalf("id length = %d, want 7", len(id))
	}
	if id[0] != 33 {
		t.Fatalf("type = %d, want 33", id[0])
	}
	decoded := Decode(level, id)
	for i := range wordIDs {
		if decoded[i] != wordIDs[i] {
			t.Fatalf("decoded[%d] = %d, want %d", i, decoded[i], wordIDs[i])
		}
	}
	if LengthOf(level, id) != len(id) {
		t.Fatalf("LengthOf = %d, want %d", LengthOf(level, id), len(id))
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for level := 2; level <= 6; level++ {
		for trial := 0; trial < 200; trial++ {
			wordIDs := make([]ids.WordID, level)
			for i := range wordIDs {
				wordIDs[i] = ids.WordID(rng.Uint32())
			}
			id := Encode(level, wordIDs)
			if LengthOf(level, id) != len(id) {
				t.Fatalf("level %d: LengthOf mismatch", level)
			}
			decoded := Decode(level, id)
			for i := range wordIDs {
				if decoded[i] != wordIDs[i] {
					t.Fatalf("level %d trial %d: decoded[%d]=%d want %d", level, trial, i, decoded[i], wordIDs[i])
				}
			}
			if Compare(level, id, Encode(level, wordIDs)) != 0 {
				t.Fatalf("level %d: compare(x,x) != 0", level)
			}
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	level := 2
	rng := rand.New(rand.NewSource(7))
	tuples := make([][]ids.WordID, 50)
	encoded := make([]ID, 50)
	for i := range tuples {
		tuples[i] = []ids.WordID{ids.WordID(rng.Uint32()), ids.WordID(rng.Uint32())}
		encoded[i] = Encode(level, tuples[i])
	}
	for i := range encoded {
		for j := range encoded {
			cij := Compare(level, encoded[i], encoded[j])
			cji := Compare(level, encoded[j], encoded[i])
			if (cij < 0) != (cji > 0) && !(cij == 0 && cji == 0) {
				t.Fatalf("anti-symmetry violated for %d,%d: %d vs %d", i, j, cij, cji)
			}
			if i == j && cij != 0 {
				t.Fatalf("compare(x,x) != 0")
			}
		}
	}
}

func TestSameWordsSameBytes(t *testing.T) {
	level := 4
	a := []ids.WordID{1, 2, 3, 4}
	b := []ids.WordID{1, 2, 3, 4}
	ea, eb := Encode(level, a), Encode(level, b)
	if Compare(level, ea, eb) != 0 {
		t.Fatalf("equal word sequences must encode to equal ids")
	}
	c := []ids.WordID{1, 2, 3, 5}
	ec := Encode(level, c)
	if Compare(level, ea, ec) == 0 {
		t.Fatalf("different word sequences must not encode to equal ids")
	}
}
