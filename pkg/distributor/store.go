package distributor

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Store is the durable account storage behind the distributor: it holds
// Distribution and ClaimRecord entities keyed by distribution ID (and
// claimant, for records).
//
// Implementations must make each Update* call an atomic serializable
// transaction: the callback's mutations are committed if and only if it
// returns nil, and no two transactions over the same distribution observe
// each other mid-flight. Claims by the same claimant therefore serialize;
// everything else may interleave freely between transactions.
type Store interface {
	// CreateDistribution persists a new distribution. Fails with ErrExists
	// if the ID is taken; creation is the only initialization guard.
	CreateDistribution(ctx context.Context, dist Distribution) error

	// GetDistribution returns the distribution, or ErrNotFound.
	GetDistribution(ctx context.Context, id string) (Distribution, error)

	// GetClaimRecord returns the claimant's record. A claimant that never
	// claimed yields a zero-valued record, not an error.
	GetClaimRecord(ctx context.Context, id string, claimant solana.PublicKey) (ClaimRecord, error)

	// UpdateDistribution runs fn in a transaction over the distribution,
	// committing mutations to dist iff fn returns nil.
	UpdateDistribution(ctx context.Context, id string, fn func(dist *Distribution) error) error

	// UpdateClaim runs fn in a transaction over the distribution and the
	// claimant's record, creating the record zero-valued if absent. The
	// distribution is read-only in this transaction; mutations to rec are
	// committed iff fn returns nil.
	UpdateClaim(ctx context.Context, id string, claimant solana.PublicKey, fn func(dist Distribution, rec *ClaimRecord) error) error
}
