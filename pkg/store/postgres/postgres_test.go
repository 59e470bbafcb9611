package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianxyz/distributor/pkg/distributor"
	"github.com/meridianxyz/distributor/pkg/ledger"
	"github.com/meridianxyz/distributor/pkg/merkle"
	disttesting "github.com/meridianxyz/distributor/utils/pkg/testing"
)

// testPK creates a deterministic public key from an integer identifier
func testPK(n int) solana.PublicKey {
	bytes := make([]byte, 32)
	for i := range bytes {
		bytes[i] = byte(n + i)
	}
	return solana.PublicKeyFromBytes(bytes)
}

func testStore(t *testing.T) *Store {
	t.Helper()

	pool, err := Connect(t.Context(), sharedDB.ConnStr())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := NewStore(Config{
		Logger: disttesting.NewLogger(),
		Pool:   pool,
	})
	require.NoError(t, err)
	return store
}

func testDistribution(root merkle.Hash) distributor.Distribution {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New().String()
	return distributor.Distribution{
		ID:         id,
		Root:       root,
		Admin:      testPK(1),
		Mint:       testPK(2),
		TokenVault: ledger.DeriveAddress("vault", distributor.ConfigKey(id)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestDistributor_PostgresStore_NewStore(t *testing.T) {
	t.Parallel()

	t.Run("returns error when config validation fails", func(t *testing.T) {
		t.Parallel()

		t.Run("missing logger", func(t *testing.T) {
			t.Parallel()
			store, err := NewStore(Config{})
			require.Error(t, err)
			require.Nil(t, store)
			require.Contains(t, err.Error(), "logger is required")
		})

		t.Run("missing pool", func(t *testing.T) {
			t.Parallel()
			store, err := NewStore(Config{Logger: disttesting.NewLogger()})
			require.Error(t, err)
			require.Nil(t, store)
			require.Contains(t, err.Error(), "pool is required")
		})
	})
}

func TestDistributor_PostgresStore_Distributions(t *testing.T) {
	t.Parallel()

	t.Run("create and get round trip", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{0x42})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))

		got, err := store.GetDistribution(t.Context(), dist.ID)
		require.NoError(t, err)
		require.Equal(t, dist.ID, got.ID)
		require.Equal(t, dist.Root, got.Root)
		require.Equal(t, dist.Admin, got.Admin)
		require.Equal(t, dist.Mint, got.Mint)
		require.Equal(t, dist.TokenVault, got.TokenVault)
		require.False(t, got.Shutdown)
		require.WithinDuration(t, dist.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("duplicate id fails with ErrExists", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))
		require.ErrorIs(t, store.CreateDistribution(t.Context(), dist), distributor.ErrExists)
	})

	t.Run("get missing fails with ErrNotFound", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		_, err := store.GetDistribution(t.Context(), uuid.New().String())
		require.ErrorIs(t, err, distributor.ErrNotFound)
	})

	t.Run("update commits mutations", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))

		newAdmin := testPK(9)
		err := store.UpdateDistribution(t.Context(), dist.ID, func(d *distributor.Distribution) error {
			d.Root = merkle.Hash{0xaa}
			d.Admin = newAdmin
			d.Shutdown = true
			d.UpdatedAt = time.Now().UTC()
			return nil
		})
		require.NoError(t, err)

		got, err := store.GetDistribution(t.Context(), dist.ID)
		require.NoError(t, err)
		require.Equal(t, merkle.Hash{0xaa}, got.Root)
		require.Equal(t, newAdmin, got.Admin)
		require.True(t, got.Shutdown)
	})

	t.Run("update rolls back when fn fails", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))

		opErr := errors.New("operation failed")
		err := store.UpdateDistribution(t.Context(), dist.ID, func(d *distributor.Distribution) error {
			d.Shutdown = true
			return opErr
		})
		require.ErrorIs(t, err, opErr)

		got, err := store.GetDistribution(t.Context(), dist.ID)
		require.NoError(t, err)
		require.False(t, got.Shutdown)
	})

	t.Run("update missing fails with ErrNotFound", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		err := store.UpdateDistribution(t.Context(), uuid.New().String(), func(d *distributor.Distribution) error {
			return nil
		})
		require.ErrorIs(t, err, distributor.ErrNotFound)
	})
}

func TestDistributor_PostgresStore_ClaimRecords(t *testing.T) {
	t.Parallel()

	claimant := testPK(10)

	t.Run("missing record reads as zero", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))

		rec, err := store.GetClaimRecord(t.Context(), dist.ID, claimant)
		require.NoError(t, err)
		require.Equal(t, uint64(0), rec.Claimed)
		require.Equal(t, claimant, rec.Claimant)
	})

	t.Run("record read under missing distribution fails", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		_, err := store.GetClaimRecord(t.Context(), uuid.New().String(), claimant)
		require.ErrorIs(t, err, distributor.ErrNotFound)
	})

	t.Run("update creates the record lazily and commits mutations", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))

		err := store.UpdateClaim(t.Context(), dist.ID, claimant, func(d distributor.Distribution, rec *distributor.ClaimRecord) error {
			require.Equal(t, dist.ID, d.ID)
			require.Equal(t, uint64(0), rec.Claimed)
			rec.Claimed = 100
			rec.UpdatedAt = time.Now().UTC()
			return nil
		})
		require.NoError(t, err)

		rec, err := store.GetClaimRecord(t.Context(), dist.ID, claimant)
		require.NoError(t, err)
		require.Equal(t, uint64(100), rec.Claimed)
	})

	t.Run("update rolls back when fn fails", func(t *testing.T) {
		t.Parallel()

		store := testStore(t)
		dist := testDistribution(merkle.Hash{})
		require.NoError(t, store.CreateDistribution(t.Context(), dist))

		opErr := errors.New("operation failed")
		err := store.UpdateClaim(t.Context(), dist.ID, claimant, func(d distributor.Distribution, rec *distributor.ClaimRecord) error {
			rec.Claimed = 500
			return opErr
		})
		require.ErrorIs(t, err, opErr)

		rec, err := store.GetClaimRecord(t.Context(), dist.ID, claimant)
		require.NoError(t, err)
		require.Equal(t, uint64(0), rec.Claimed)
	})
}

// The full claim lifecycle driven through the postgres store, exercising
// the same scenario the in-memory store tests cover.
func TestDistributor_PostgresStore_ClaimLifecycle(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	l := ledger.NewMemory()

	d, err := distributor.New(distributor.Config{
		Logger: disttesting.NewLogger(),
		Store:  store,
		Ledger: l,
	})
	require.NoError(t, err)

	admin := testPK(1)
	alice := testPK(10)
	bob := testPK(11)

	tree, err := merkle.NewTree([]merkle.Leaf{
		{Claimant: alice, TotalAmount: 100},
		{Claimant: bob, TotalAmount: 50},
	})
	require.NoError(t, err)

	dist, err := d.Initialize(t.Context(), admin, testPK(2), tree.Root())
	require.NoError(t, err)
	require.NoError(t, l.Mint(t.Context(), dist.TokenVault, 150))

	proof, err := tree.Proof(alice)
	require.NoError(t, err)
	result, err := d.Claim(t.Context(), dist.ID, alice, 100, proof)
	require.NoError(t, err)
	require.Equal(t, uint64(100), result.Amount)

	_, err = d.Claim(t.Context(), dist.ID, alice, 100, proof)
	require.ErrorIs(t, err, distributor.ErrAlreadyClaimed)

	newTree, err := merkle.NewTree([]merkle.Leaf{
		{Claimant: alice, TotalAmount: 150},
		{Claimant: bob, TotalAmount: 50},
	})
	require.NoError(t, err)
	require.NoError(t, d.UpdateRoot(t.Context(), dist.ID, admin, newTree.Root()))

	newProof, err := newTree.Proof(alice)
	require.NoError(t, err)
	result, err = d.Claim(t.Context(), dist.ID, alice, 150, newProof)
	require.NoError(t, err)
	require.Equal(t, uint64(50), result.Amount)

	swept, err := d.Shutdown(t.Context(), dist.ID, admin)
	require.NoError(t, err)
	require.Equal(t, uint64(0), swept)

	_, err = d.Claim(t.Context(), dist.ID, bob, 50, newProof)
	require.ErrorIs(t, err, distributor.ErrShutdown)
}
