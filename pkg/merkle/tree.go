package merkle

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Leaf is one (claimant, cumulative entitlement) pair committed to by a tree.
type Leaf struct {
	Claimant    solana.PublicKey `json:"claimant"`
	TotalAmount uint64           `json:"total_amount"`
}

// Tree is a binary hash tree over a set of leaves. An unpaired node at the
// end of a level is promoted to the next level unchanged, so proofs for it
// skip that level entirely.
type Tree struct {
	levels [][]Hash
	index  map[solana.PublicKey]int
}

// NewTree builds a tree over the given leaves. Leaf order is preserved, so
// the same leaf list always yields the same root. Duplicate claimants are
// rejected; a claimant can only appear once per distribution.
func NewTree(leaves []Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, errors.New("at least one leaf is required")
	}

	index := make(map[solana.PublicKey]int, len(leaves))
	level := make([]Hash, len(leaves))
	for i, leaf := range leaves {
		if _, ok := index[leaf.Claimant]; ok {
			return nil, fmt.Errorf("duplicate claimant %s", leaf.Claimant)
		}
		index[leaf.Claimant] = i
		level[i] = LeafHash(leaf.Claimant, leaf.TotalAmount)
	}

	levels := [][]Hash{level}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels, index: index}, nil
}

// Root returns the tree's commitment.
func (t *Tree) Root() Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Depth returns the number of levels above the leaves.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Proof returns the ordered sibling hashes proving the claimant's leaf is a
// member of the tree. Returns an error if the claimant is not a leaf.
func (t *Tree) Proof(claimant solana.PublicKey) ([]Hash, error) {
	idx, ok := t.index[claimant]
	if !ok {
		return nil, fmt.Errorf("claimant %s is not in the tree", claimant)
	}

	proof := make([]Hash, 0, len(t.levels)-1)
	for level := 0; level < len(t.levels)-1; level++ {
		var sibling int
		if idx%2 == 0 {
			sibling = idx + 1
		} else {
			sibling = idx - 1
		}
		if sibling < len(t.levels[level]) {
			proof = append(proof, t.levels[level][sibling])
		}
		idx /= 2
	}
	return proof, nil
}
