// Package wire implements the SSZ-shaped wire encoding and hashing helpers
// gossip payloads use: plain sha256 hashing/merkleization (adapted from the
// teacher's common/ssz helpers) plus hand-written fastssz-style
// Marshal/Unmarshal methods, since sszgen can't be invoked in this
// environment.
package wire

import (
	"crypto/sha256"

	"github.com/clustercore/corevalidator/types"
)

// Hash returns the sha256 digest of data as a types.Hash.
func Hash(data []byte) types.Hash {
	return types.Hash(sha256.Sum256(data))
}

// HashNodes combines two child hashes into their parent hash, the Merkle
// tree's two-to-one combining step.
func HashNodes(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// ExtendAndHash appends a single extra byte to h and rehashes, used by the
// accounts-hash verifier's fault-injection path to produce a deterministically
// wrong hash for testing without touching the package actually archived.
func ExtendAndHash(h types.Hash, extra byte) types.Hash {
	var buf [33]byte
	copy(buf[:32], h[:])
	buf[32] = extra
	return Hash(buf[:])
}

// zeroHashCache caches zero subtrees at each merkle depth so Merkleize doesn't
// recompute H(zero, zero) repeatedly for padding.
var zeroHashCache = [64]types.Hash{}

func zeroHashAtDepth(depth int) types.Hash {
	if depth == 0 {
		return types.Hash{}
	}
	if depth < len(zeroHashCache) && zeroHashCache[depth] != (types.Hash{}) {
		return zeroHashCache[depth]
	}
	h := HashNodes(zeroHashAtDepth(depth-1), zeroHashAtDepth(depth-1))
	if depth < len(zeroHashCache) {
		zeroHashCache[depth] = h
	}
	return h
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Merkleize computes the SSZ merkle root of chunks, padding with zero
// subtrees up to limit leaves (or to the next power of two of len(chunks)
// when limit is 0).
func Merkleize(chunks []types.Hash, limit int) types.Hash {
	width := limit
	if width == 0 {
		width = len(chunks)
	}
	width = nextPowerOfTwo(width)
	if width == 0 {
		return types.Hash{}
	}

	layer := make([]types.Hash, width)
	copy(layer, chunks)

	depth := 0
	for w := width; w > 1; w >>= 1 {
		depth++
	}

	for d := 0; width > 1; d++ {
		next := make([]types.Hash, width/2)
		for i := 0; i < width/2; i++ {
			left := layer[2*i]
			right := layer[2*i+1]
			next[i] = HashNodes(left, right)
		}
		layer = next
		width /= 2
		_ = d
	}
	if len(layer) == 0 {
		return zeroHashAtDepth(depth)
	}
	return layer[0]
}

// MixInLength folds a length value into a root, as SSZ does for variable
// length lists: mix_in_length(root, length) = H(root, serialize(length)).
func MixInLength(root types.Hash, length uint64) types.Hash {
	var lenBytes [32]byte
	for i := 0; i < 8; i++ {
		lenBytes[i] = byte(length >> (8 * i))
	}
	return HashNodes(root, types.Hash(lenBytes))
}
