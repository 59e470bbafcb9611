package merkle

import (
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// testPK creates a deterministic public key from an integer identifier
func testPK(n int) solana.PublicKey {
	bytes := make([]byte, 32)
	for i := range bytes {
		bytes[i] = byte(n + i)
	}
	return solana.PublicKeyFromBytes(bytes)
}

func testLeaves(n int) []Leaf {
	leaves := make([]Leaf, n)
	for i := range leaves {
		leaves[i] = Leaf{Claimant: testPK(i + 1), TotalAmount: uint64((i + 1) * 100)}
	}
	return leaves
}

func TestDistributor_Merkle_NewTree(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty leaf set", func(t *testing.T) {
		t.Parallel()
		tree, err := NewTree(nil)
		require.Error(t, err)
		require.Nil(t, tree)
	})

	t.Run("rejects duplicate claimants", func(t *testing.T) {
		t.Parallel()
		tree, err := NewTree([]Leaf{
			{Claimant: testPK(1), TotalAmount: 100},
			{Claimant: testPK(1), TotalAmount: 200},
		})
		require.Error(t, err)
		require.Nil(t, tree)
		require.Contains(t, err.Error(), "duplicate claimant")
	})

	t.Run("same leaves produce same root", func(t *testing.T) {
		t.Parallel()
		a, err := NewTree(testLeaves(5))
		require.NoError(t, err)
		b, err := NewTree(testLeaves(5))
		require.NoError(t, err)
		require.Equal(t, a.Root(), b.Root())
	})

	t.Run("changing any leaf changes the root", func(t *testing.T) {
		t.Parallel()
		base, err := NewTree(testLeaves(4))
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			leaves := testLeaves(4)
			leaves[i].TotalAmount++
			changed, err := NewTree(leaves)
			require.NoError(t, err)
			require.NotEqual(t, base.Root(), changed.Root(), "leaf %d", i)
		}
	})
}

func TestDistributor_Merkle_VerifyProof(t *testing.T) {
	t.Parallel()

	t.Run("valid proofs verify for every member", func(t *testing.T) {
		t.Parallel()

		// Odd sizes exercise the unpaired-node promotion path.
		for _, size := range []int{1, 2, 3, 4, 5, 7, 8, 33} {
			t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
				t.Parallel()

				leaves := testLeaves(size)
				tree, err := NewTree(leaves)
				require.NoError(t, err)

				for _, leaf := range leaves {
					proof, err := tree.Proof(leaf.Claimant)
					require.NoError(t, err)
					require.LessOrEqual(t, len(proof), MaxProofLen)
					require.True(t, VerifyProof(tree.Root(), leaf.Claimant, leaf.TotalAmount, proof))
				}
			})
		}
	})

	t.Run("single leaf verifies with empty proof", func(t *testing.T) {
		t.Parallel()
		tree, err := NewTree(testLeaves(1))
		require.NoError(t, err)
		require.True(t, VerifyProof(tree.Root(), testPK(1), 100, nil))
	})

	t.Run("bit flip in any sibling fails verification", func(t *testing.T) {
		t.Parallel()

		leaves := testLeaves(8)
		tree, err := NewTree(leaves)
		require.NoError(t, err)
		proof, err := tree.Proof(leaves[3].Claimant)
		require.NoError(t, err)

		for i := range proof {
			corrupted := make([]Hash, len(proof))
			copy(corrupted, proof)
			corrupted[i][0] ^= 0x01
			require.False(t, VerifyProof(tree.Root(), leaves[3].Claimant, leaves[3].TotalAmount, corrupted), "sibling %d", i)
		}
	})

	t.Run("wrong amount fails verification", func(t *testing.T) {
		t.Parallel()

		leaves := testLeaves(4)
		tree, err := NewTree(leaves)
		require.NoError(t, err)
		proof, err := tree.Proof(leaves[0].Claimant)
		require.NoError(t, err)

		require.False(t, VerifyProof(tree.Root(), leaves[0].Claimant, leaves[0].TotalAmount+1, proof))
		require.False(t, VerifyProof(tree.Root(), leaves[0].Claimant, 0, proof))
	})

	t.Run("wrong claimant fails verification", func(t *testing.T) {
		t.Parallel()

		leaves := testLeaves(4)
		tree, err := NewTree(leaves)
		require.NoError(t, err)
		proof, err := tree.Proof(leaves[0].Claimant)
		require.NoError(t, err)

		require.False(t, VerifyProof(tree.Root(), testPK(99), leaves[0].TotalAmount, proof))
	})

	t.Run("internal node cannot pose as a leaf", func(t *testing.T) {
		t.Parallel()

		// A proof one level short hands the verifier an internal node's
		// pre-image position; double hashing makes the fold diverge.
		leaves := testLeaves(4)
		tree, err := NewTree(leaves)
		require.NoError(t, err)
		proof, err := tree.Proof(leaves[0].Claimant)
		require.NoError(t, err)
		require.False(t, VerifyProof(tree.Root(), leaves[0].Claimant, leaves[0].TotalAmount, proof[:len(proof)-1]))
	})
}

func TestDistributor_Merkle_Proof(t *testing.T) {
	t.Parallel()

	t.Run("unknown claimant returns error", func(t *testing.T) {
		t.Parallel()
		tree, err := NewTree(testLeaves(3))
		require.NoError(t, err)
		proof, err := tree.Proof(testPK(42))
		require.Error(t, err)
		require.Nil(t, proof)
	})

	t.Run("depth matches leaf count", func(t *testing.T) {
		t.Parallel()
		tree, err := NewTree(testLeaves(8))
		require.NoError(t, err)
		require.Equal(t, 3, tree.Depth())
	})
}

func TestDistributor_Merkle_Hash(t *testing.T) {
	t.Parallel()

	t.Run("hex round trip", func(t *testing.T) {
		t.Parallel()
		h := LeafHash(testPK(1), 100)
		parsed, err := HashFromHex(h.String())
		require.NoError(t, err)
		require.Equal(t, h, parsed)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		t.Parallel()
		_, err := HashFromBytes(make([]byte, 31))
		require.Error(t, err)
		_, err = HashFromHex("abcd")
		require.Error(t, err)
	})

	t.Run("rejects non-hex input", func(t *testing.T) {
		t.Parallel()
		var h Hash
		err := h.UnmarshalText([]byte("zz"))
		require.Error(t, err)
	})

	t.Run("leaf hash is order sensitive", func(t *testing.T) {
		t.Parallel()
		require.NotEqual(t, LeafHash(testPK(1), 100), LeafHash(testPK(1), 101))
		require.NotEqual(t, LeafHash(testPK(1), 100), LeafHash(testPK(2), 100))
	})
}
