// Package merkle turns field tuples into opaque content tokens.
//
// Each field is hashed with SHA-256 and the leaf hashes are folded pairwise
// into a binary Merkle root (an odd hash at the end of a level is paired with
// itself). Tokens are the lowercase hex encoding of the root.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"stmtguard/pkg/platform/strings"
)

// ErrEmptyTokenSet is returned when there is nothing to hash.
var ErrEmptyTokenSet = errors.New("empty token set")

// TokenizeRecord hashes each field's UTF-8 bytes and returns the Merkle root.
// Field order matters.
func TokenizeRecord(fields []string) (string, error) {
	if len(fields) == 0 {
		return "", ErrEmptyTokenSet
	}
	leaves := make([][]byte, len(fields))
	for i, f := range fields {
		leaves[i] = leafHash(f)
	}
	return hex.EncodeToString(Root(leaves)), nil
}

// TokenizeTokenSet treats each token as a field. Callers wanting an
// order-independent aggregate sort first, or use AggregateToken.
func TokenizeTokenSet(tokens []string) (string, error) {
	return TokenizeRecord(tokens)
}

// AggregateToken is the statement-level token: the Merkle root of the sorted
// transaction tokens.
func AggregateToken(tokens []string) (string, error) {
	return TokenizeTokenSet(strings.SortedCopy(tokens))
}

// Root folds leaf hashes into a single root. Root of one leaf is the leaf.
func Root(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return nil
	}
	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		level = next
	}
	return level[0]
}

func leafHash(field string) []byte {
	sum := sha256.Sum256([]byte(field))
	return sum[:]
}

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
