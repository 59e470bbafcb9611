package ledger

import (
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

func TestDistributor_Ledger_DeriveAuthority(t *testing.T) {
	t.Parallel()

	t.Run("derivation is deterministic", func(t *testing.T) {
		t.Parallel()
		a := DeriveAuthority("vault", testPK(1))
		b := DeriveAuthority("vault", testPK(1))
		require.Equal(t, a.Key(), b.Key())
	})

	t.Run("derivation separates by seed and base", func(t *testing.T) {
		t.Parallel()
		base := DeriveAuthority("vault", testPK(1))
		require.NotEqual(t, base.Key(), DeriveAuthority("vault", testPK(2)).Key())
		require.NotEqual(t, base.Key(), DeriveAuthority("config", testPK(1)).Key())
	})

	t.Run("address namespace does not collide with authority", func(t *testing.T) {
		t.Parallel()
		require.NotEqual(t, DeriveAuthority("vault", testPK(1)).Key(), DeriveAddress("vault", testPK(1)))
	})
}

func TestDistributor_Ledger_Memory(t *testing.T) {
	t.Parallel()

	t.Run("create mint and read balance", func(t *testing.T) {
		t.Parallel()

		l := NewMemory()
		key := testPK(1)
		require.NoError(t, l.CreateAccount(t.Context(), key, SelfAuthority(key)))
		require.NoError(t, l.Mint(t.Context(), key, 500))

		balance, err := l.Balance(t.Context(), key)
		require.NoError(t, err)
		require.Equal(t, uint64(500), balance)
	})

	t.Run("create fails for existing account", func(t *testing.T) {
		t.Parallel()

		l := NewMemory()
		key := testPK(1)
		require.NoError(t, l.CreateAccount(t.Context(), key, SelfAuthority(key)))
		err := l.CreateAccount(t.Context(), key, SelfAuthority(key))
		require.ErrorIs(t, err, ErrAccountExists)
	})

	t.Run("mint and balance fail for missing account", func(t *testing.T) {
		t.Parallel()

		l := NewMemory()
		require.ErrorIs(t, l.Mint(t.Context(), testPK(1), 1), ErrAccountNotFound)
		_, err := l.Balance(t.Context(), testPK(1))
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("transfer moves funds and lazily creates destination", func(t *testing.T) {
		t.Parallel()

		l := NewMemory()
		from := testPK(1)
		to := testPK(2)
		require.NoError(t, l.CreateAccount(t.Context(), from, SelfAuthority(from)))
		require.NoError(t, l.Mint(t.Context(), from, 100))

		require.NoError(t, l.Transfer(t.Context(), from, to, SelfAuthority(from), 60))

		fromBalance, err := l.Balance(t.Context(), from)
		require.NoError(t, err)
		require.Equal(t, uint64(40), fromBalance)

		toBalance, err := l.Balance(t.Context(), to)
		require.NoError(t, err)
		require.Equal(t, uint64(60), toBalance)
	})

	t.Run("transfer fails atomically on insufficient balance", func(t *testing.T) {
		t.Parallel()

		l := NewMemory()
		from := testPK(1)
		require.NoError(t, l.CreateAccount(t.Context(), from, SelfAuthority(from)))
		require.NoError(t, l.Mint(t.Context(), from, 10))

		err := l.Transfer(t.Context(), from, testPK(2), SelfAuthority(from), 11)
		require.ErrorIs(t, err, ErrInsufficientBalance)

		fromBalance, err := l.Balance(t.Context(), from)
		require.NoError(t, err)
		require.Equal(t, uint64(10), fromBalance)

		_, err = l.Balance(t.Context(), testPK(2))
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("transfer fails without owning authority", func(t *testing.T) {
		t.Parallel()

		l := NewMemory()
		vault := testPK(1)
		owner := DeriveAuthority("vault", testPK(3))
		require.NoError(t, l.CreateAccount(t.Context(), vault, owner))
		require.NoError(t, l.Mint(t.Context(), vault, 100))

		err := l.Transfer(t.Context(), vault, testPK(2), SelfAuthority(vault), 1)
		require.ErrorIs(t, err, ErrUnauthorized)

		require.NoError(t, l.Transfer(t.Context(), vault, testPK(2), owner, 1))
	})
}
