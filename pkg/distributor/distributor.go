// Package distributor implements the claim verification and state
// transition core of the token distribution ledger: merkle-proof-gated
// claims with cumulative entitlement accounting, and the admin lifecycle
// (root rotation, admin transfer, shutdown with fund sweep).
package distributor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/meridianxyz/distributor/pkg/ledger"
	"github.com/meridianxyz/distributor/pkg/merkle"
)

// vaultSeed namespaces the vault account and its authority under a
// distribution's config key.
const vaultSeed = "vault"

type Config struct {
	Logger *slog.Logger
	Store  Store
	Ledger ledger.Ledger
	Clock  clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Distributor executes distribution operations against a Store and a
// Ledger. It holds no state of its own; every operation is a transaction
// against the store.
type Distributor struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// vaultAuthority reconstructs the derived authority that owns a
// distribution's vault. It never leaves this package; only claim and
// shutdown paths can move vault funds.
func vaultAuthority(id string) ledger.Authority {
	return ledger.DeriveAuthority(vaultSeed, ConfigKey(id))
}

// Initialize creates a new distribution with the caller as admin: a vault
// account owned by the distribution's derived authority, and the config
// record committing to the initial root. The store's create-fails-if-exists
// semantics are the only reinvocation guard.
func (d *Distributor) Initialize(ctx context.Context, admin, mint solana.PublicKey, root merkle.Hash) (Distribution, error) {
	id := uuid.New().String()
	configKey := ConfigKey(id)
	vault := ledger.DeriveAddress(vaultSeed, configKey)

	if err := d.cfg.Ledger.CreateAccount(ctx, vault, vaultAuthority(id)); err != nil {
		return Distribution{}, fmt.Errorf("failed to create vault account: %w", err)
	}

	now := d.cfg.Clock.Now().UTC()
	dist := Distribution{
		ID:         id,
		Root:       root,
		Admin:      admin,
		Mint:       mint,
		TokenVault: vault,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := d.cfg.Store.CreateDistribution(ctx, dist); err != nil {
		return Distribution{}, fmt.Errorf("failed to create distribution: %w", err)
	}

	d.log.Info("distributor: initialized distribution",
		"id", id, "admin", admin.String(), "vault", vault.String(), "root", root.String())
	return dist, nil
}

// Claim pays out the delta between totalAmount and what the claimant was
// already paid, after verifying the merkle proof for (claimant,
// totalAmount) against the current root. The claimed total is recorded
// absolutely, so repeating a claim is harmless and a later root that raises
// the claimant's entitlement pays only the increment.
func (d *Distributor) Claim(ctx context.Context, id string, claimant solana.PublicKey, totalAmount uint64, proof []merkle.Hash) (ClaimResult, error) {
	if len(proof) > merkle.MaxProofLen {
		return ClaimResult{}, fmt.Errorf("proof has %d siblings: %w", len(proof), ErrProofTooLong)
	}

	var result ClaimResult
	err := d.cfg.Store.UpdateClaim(ctx, id, claimant, func(dist Distribution, rec *ClaimRecord) error {
		if dist.Shutdown {
			return ErrShutdown
		}
		if totalAmount <= rec.Claimed {
			return fmt.Errorf("claimed %d, presented %d: %w", rec.Claimed, totalAmount, ErrAlreadyClaimed)
		}
		if !merkle.VerifyProof(dist.Root, claimant, totalAmount, proof) {
			return ErrInvalidProof
		}

		amount := totalAmount - rec.Claimed

		balance, err := d.cfg.Ledger.Balance(ctx, dist.TokenVault)
		if err != nil {
			return fmt.Errorf("failed to read vault balance: %w", err)
		}
		if balance < amount {
			return fmt.Errorf("vault holds %d, claim needs %d: %w", balance, amount, ErrInsufficientBalance)
		}

		rec.Claimed = totalAmount
		rec.UpdatedAt = d.cfg.Clock.Now().UTC()

		// The transfer moves only the delta, authorized by the config's
		// derived authority. A transfer failure aborts the transaction,
		// rolling the record back with it.
		if err := d.cfg.Ledger.Transfer(ctx, dist.TokenVault, claimant, vaultAuthority(id), amount); err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				return fmt.Errorf("vault transfer: %w", ErrInsufficientBalance)
			}
			return fmt.Errorf("failed to transfer claim amount: %w", err)
		}

		result = ClaimResult{Claimed: totalAmount, Amount: amount}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	d.log.Info("distributor: claim paid",
		"id", id, "claimant", claimant.String(), "claimed", result.Claimed, "amount", result.Amount)
	return result, nil
}

// UpdateRoot replaces the distribution's merkle commitment. Existing claim
// records are untouched; entitlements are reinterpreted against the new
// tree on the next claim.
func (d *Distributor) UpdateRoot(ctx context.Context, id string, caller solana.PublicKey, newRoot merkle.Hash) error {
	err := d.cfg.Store.UpdateDistribution(ctx, id, func(dist *Distribution) error {
		if caller != dist.Admin {
			return ErrUnauthorized
		}
		if dist.Shutdown {
			return ErrShutdown
		}
		dist.Root = newRoot
		dist.UpdatedAt = d.cfg.Clock.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	d.log.Info("distributor: root updated", "id", id, "root", newRoot.String())
	return nil
}

// SetAdmin transfers admin authority outright. The former admin loses all
// access at commit; there is no acceptance handshake.
func (d *Distributor) SetAdmin(ctx context.Context, id string, caller, newAdmin solana.PublicKey) error {
	err := d.cfg.Store.UpdateDistribution(ctx, id, func(dist *Distribution) error {
		if caller != dist.Admin {
			return ErrUnauthorized
		}
		dist.Admin = newAdmin
		dist.UpdatedAt = d.cfg.Clock.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	d.log.Info("distributor: admin transferred", "id", id, "admin", newAdmin.String())
	return nil
}

// Shutdown permanently disables claims and root updates, and sweeps the
// whole remaining vault balance to the admin. One-way; a second call fails
// with ErrShutdown.
func (d *Distributor) Shutdown(ctx context.Context, id string, caller solana.PublicKey) (uint64, error) {
	var swept uint64
	err := d.cfg.Store.UpdateDistribution(ctx, id, func(dist *Distribution) error {
		if caller != dist.Admin {
			return ErrUnauthorized
		}
		if dist.Shutdown {
			return ErrShutdown
		}

		dist.Shutdown = true
		dist.UpdatedAt = d.cfg.Clock.Now().UTC()

		balance, err := d.cfg.Ledger.Balance(ctx, dist.TokenVault)
		if err != nil {
			return fmt.Errorf("failed to read vault balance: %w", err)
		}
		if balance > 0 {
			if err := d.cfg.Ledger.Transfer(ctx, dist.TokenVault, caller, vaultAuthority(id), balance); err != nil {
				return fmt.Errorf("failed to sweep vault: %w", err)
			}
		}
		swept = balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.log.Info("distributor: shut down", "id", id, "swept", swept)
	return swept, nil
}

// Status returns the distribution record plus the live vault balance.
func (d *Distributor) Status(ctx context.Context, id string) (Distribution, uint64, error) {
	dist, err := d.cfg.Store.GetDistribution(ctx, id)
	if err != nil {
		return Distribution{}, 0, err
	}
	balance, err := d.cfg.Ledger.Balance(ctx, dist.TokenVault)
	if err != nil {
		return Distribution{}, 0, fmt.Errorf("failed to read vault balance: %w", err)
	}
	return dist, balance, nil
}

// ClaimRecord returns the claimant's record; never-claimed claimants get a
// zero-valued record.
func (d *Distributor) ClaimRecord(ctx context.Context, id string, claimant solana.PublicKey) (ClaimRecord, error) {
	return d.cfg.Store.GetClaimRecord(ctx, id, claimant)
}
