package bitio

import (
	"testing"
)

func TestBytesNeeded(t *testing.T) {
	cases := []struct {
		x    uint32
		want uint8
	}{
		{0, 1},
		{255, 1},
		{256, 2},
		{1<<16 - 1, 2},
		{1 << 16, 3},
		{1<<24 - 1, 3},
		{1 << 24, 4},
		{1<<32 - 1, 4},
	}
	for _, c := range cases {
		if got := BytesNeeded(c.x); got != c.want {
			t.Errorf("BytesNeeded(%d) = %d, want %d", c.x, got, c.want)
		}
	}
}

func TestCopyBitsByteAligned(t *testing.T) {
	src := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	dst := make([]byte, 4)
	CopyBits(src, 0, dst, 0, 32)
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte-aligned copy mismatch at %d: got %x want %x", i, dst[i], src[i])
		}
	}
}

func TestCopyBitsUnaligned(t *testing.T) {
	src := []byte{0b10110100}
	dst := make([]byte, 1)
	// Copy the middle 4 bits (bits 2..5, 0-indexed from MSB) to dst bit offset 0.
	CopyBits(src, 2, dst, 0, 4)
	// src bits from offset 2: 1,1,0,1 -> 0xD0 (left-aligned in first nibble)
	want := byte(0b11010000)
	if dst[0] != want {
		t.Fatalf("unaligned copy = %08b, want %08b", dst[0], want)
	}
}

func TestCopyEndBitsToPosPortable(t *testing.T) {
	dst := make([]byte, 4)
	CopyEndBitsToPos(0x1234, 16, dst, 0)
	if dst[0] != 0x12 || dst[1] != 0x34 {
		t.Fatalf("got % x, want 12 34", dst[:2])
	}

	dst2 := make([]byte, 1)
	CopyEndBitsToPos(0xFF, 4, dst2, 0)
	if dst2[0] != 0xF0 {
		t.Fatalf("got %08b, want 11110000", dst2[0])
	}
}
