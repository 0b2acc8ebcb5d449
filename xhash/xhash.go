// Package xhash provides the stable string and integer-sequence hashes used
// throughout the trie and word-index as bucket and comparison keys.
package xhash

import "github.com/cespare/xxhash/v2"

// String64 returns a stable 64-bit hash of s, used for phrase uids and the
// hashing word-index variant.
func String64(s string) uint64 {
	return xxhash.Sum64String(s)
}

// String32 folds String64 down to 32 bits for callers that only need a
// 32-bit space (e.g. seeding a word id directly).
func String32(s string) uint32 {
	h := String64(s)
	return uint32(h) ^ uint32(h>>32)
}

// Mix64 is a fast-hash style multiplicative/xor-shift mixer used to turn an
// arbitrary 64-bit value into a well-distributed bucket index source for
// open-addressing hash maps.
func Mix64(h uint64) uint64 {
	h ^= h >> 23
	h *= 0x2127599bf4325c37
	h ^= h >> 47
	return h
}

// Words64 computes a combined hash of a word-id sequence, used to pick the
// bucket for an m-gram of level m > 1. The combination is order-sensitive
// and deterministic: the same sequence always hashes to the same value.
func Words64(ids []uint32) uint64 {
	var h uint64 = 0xcbf29ce484222325 // FNV offset basis, mixed further below.
	for _, id := range ids {
		h ^= uint64(id)
		h = Mix64(h)
	}
	return h
}

// MixPhraseUIDs combines a source and target phrase uid into a single
// composite id, used to key cached source+target feature lookups.
func MixPhraseUIDs(source, target uint64) uint64 {
	return Mix64(source) ^ Mix64(target)<<1
}

// NextPow2 returns the smallest power of two >= n (n >= 1).
func NextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
