// Package treehash computes the SHA-256 tree hash the remote store uses to
// verify multipart archives. A payload is split into 1 MiB leaves, each leaf
// is hashed, and adjacent digests are folded pairwise until one remains.
package treehash

import (
	"crypto/sha256"
	"encoding/hex"
)

// LeafSize is the leaf size of the tree hash, fixed by the remote protocol.
const LeafSize = 1024 * 1024

// Hash computes the tree hash of a single payload.
func Hash(payload []byte) []byte {
	if len(payload) == 0 {
		return emptyDigest()
	}

	leaves := make([][]byte, 0, (len(payload)+LeafSize-1)/LeafSize)
	for offset := 0; offset < len(payload); offset += LeafSize {
		end := offset + LeafSize
		if end > len(payload) {
			end = len(payload)
		}
		sum := sha256.Sum256(payload[offset:end])
		leaves = append(leaves, sum[:])
	}

	return Combine(leaves)
}

// Combine folds an ordered digest list into one digest: adjacent digests are
// concatenated and re-hashed each round, an odd tail is carried forward
// unchanged, until a single digest remains. The result is order-sensitive.
//
// The empty list maps to the SHA-256 of zero bytes. This constant must stay
// stable across versions so the remote side can keep verifying empty archives.
func Combine(digests [][]byte) []byte {
	if len(digests) == 0 {
		return emptyDigest()
	}

	level := digests
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				break
			}
			pair := make([]byte, 0, 2*sha256.Size)
			pair = append(pair, level[i]...)
			pair = append(pair, level[i+1]...)
			sum := sha256.Sum256(pair)
			next = append(next, sum[:])
		}
		level = next
	}

	return level[0]
}

// ToHex returns the lowercase hex form the remote protocol expects.
func ToHex(digest []byte) string {
	return hex.EncodeToString(digest)
}

// FromHex parses a hex digest produced by ToHex.
func FromHex(checksum string) ([]byte, error) {
	return hex.DecodeString(checksum)
}

func emptyDigest() []byte {
	sum := sha256.Sum256(nil)
	return sum[:]
}
