// Package ledger models the host ledger the distributor runs against:
// token balances keyed by account address, an atomic transfer primitive,
// and derived authorities that let a program-owned account authorize
// debits without holding a private key.
package ledger

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrAccountNotFound is returned when an address has no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when creating an address that is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrInsufficientBalance is returned when a transfer would overdraw the source.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnauthorized is returned when a transfer authority does not own the source.
	ErrUnauthorized = errors.New("authority does not own source account")
)

// Authority authorizes debits from accounts it owns. Holders obtain one
// either from their own key (human wallets) or by deriving it from a seed
// and a program entity's address, which is how the distributor's config
// signs vault transfers without any private key existing for it.
type Authority struct {
	key solana.PublicKey
}

// Key returns the authority's address, used as an account owner.
func (a Authority) Key() solana.PublicKey {
	return a.key
}

// SelfAuthority is the authority of an externally-owned account: the
// account authorizes its own debits.
func SelfAuthority(key solana.PublicKey) Authority {
	return Authority{key: key}
}

// DeriveAuthority deterministically derives an authority address from a
// seed and a base address. The same (seed, base) pair always yields the
// same authority, so a config account can reconstruct its vault authority
// on every call without storing it.
func DeriveAuthority(seed string, base solana.PublicKey) Authority {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write(base[:])
	var key solana.PublicKey
	h.Sum(key[:0])
	return Authority{key: key}
}

// DeriveAddress derives a program-owned account address from a seed and a
// base address, in the same fashion as DeriveAuthority but namespaced so
// an address never collides with its own authority.
func DeriveAddress(seed string, base solana.PublicKey) solana.PublicKey {
	h := sha256.New()
	h.Write([]byte("address:" + seed))
	h.Write(base[:])
	var key solana.PublicKey
	h.Sum(key[:0])
	return key
}

// Ledger is the balance store and transfer engine the distributor core
// drives. Implementations must apply each call atomically: a failed
// transfer leaves both balances untouched.
type Ledger interface {
	// CreateAccount creates an empty account at key owned by owner.
	// Fails with ErrAccountExists if the address is taken.
	CreateAccount(ctx context.Context, key solana.PublicKey, owner Authority) error

	// Mint credits amount to an existing account.
	Mint(ctx context.Context, key solana.PublicKey, amount uint64) error

	// Balance returns the current balance of an account.
	Balance(ctx context.Context, key solana.PublicKey) (uint64, error)

	// Transfer moves amount from one account to another, authorized by
	// the source account's owner. Fails with ErrInsufficientBalance if
	// the source cannot cover amount, creating the destination lazily
	// (owned by itself) if it does not exist.
	Transfer(ctx context.Context, from, to solana.PublicKey, authority Authority, amount uint64) error
}
