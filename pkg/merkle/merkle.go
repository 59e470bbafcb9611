// Package merkle implements the hash commitments used by the distributor:
// leaf hashing over (claimant, cumulative amount) pairs, inclusion proof
// verification against a 32-byte root, and tree construction for the
// off-chain tooling that publishes roots and hands out proofs.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// HashSize is the width of every node and root in the tree.
const HashSize = sha256.Size

// MaxProofLen bounds the number of siblings a proof may carry. A tree over
// 2^32 leaves is far beyond any distribution we serve, and an unbounded
// proof would let a caller buy arbitrary hashing work with one request.
const MaxProofLen = 32

// Hash is a single 32-byte tree node.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash, rejecting any length other than 32.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length: expected %d, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("failed to decode hash hex: %w", err)
	}
	return HashFromBytes(b)
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler, so hashes render as hex in
// JSON payloads.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// LeafHash computes the double-hashed leaf for a (claimant, totalAmount)
// pair: sha256(sha256(claimant_pubkey || big_endian_u64(totalAmount))).
// The second hash keeps an attacker from presenting an internal node as a
// leaf pre-image.
func LeafHash(claimant solana.PublicKey, totalAmount uint64) Hash {
	var amount [8]byte
	binary.BigEndian.PutUint64(amount[:], totalAmount)

	inner := sha256.New()
	inner.Write(claimant[:])
	inner.Write(amount[:])

	var preimage Hash
	inner.Sum(preimage[:0])
	return sha256.Sum256(preimage[:])
}

// hashPair combines two nodes in canonical order: the byte-wise smaller hash
// goes first, so proofs never need to encode left/right position.
func hashPair(a, b Hash) Hash {
	h := sha256.New()
	if bytes.Compare(a[:], b[:]) <= 0 {
		h.Write(a[:])
		h.Write(b[:])
	} else {
		h.Write(b[:])
		h.Write(a[:])
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// VerifyProof reports whether (claimant, totalAmount) is a member of the
// tree committed to by root. It folds the sibling hashes in order, starting
// from the double-hashed leaf, and compares the result to root. Pure and
// deterministic; callers are expected to bound len(proof) by MaxProofLen
// before paying for verification.
func VerifyProof(root Hash, claimant solana.PublicKey, totalAmount uint64, proof []Hash) bool {
	acc := LeafHash(claimant, totalAmount)
	for _, sibling := range proof {
		acc = hashPair(acc, sibling)
	}
	return acc == root
}
