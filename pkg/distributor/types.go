package distributor

import (
	"crypto/sha256"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/meridianxyz/distributor/pkg/merkle"
)

// Distribution is the per-distribution configuration record: the current
// merkle root, the admin authorized to mutate it, and the vault holding the
// distributable funds. TokenVault is immutable once set; Shutdown only ever
// transitions false to true.
type Distribution struct {
	ID         string           `json:"id"`
	Root       merkle.Hash      `json:"root"`
	Admin      solana.PublicKey `json:"admin"`
	Mint       solana.PublicKey `json:"mint"`
	TokenVault solana.PublicKey `json:"token_vault"`
	Shutdown   bool             `json:"shutdown"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ClaimRecord tracks the cumulative amount already paid to one claimant of
// one distribution. Created zero-valued on the claimant's first claim and
// never deleted; Claimed is monotonically non-decreasing.
type ClaimRecord struct {
	DistributionID string           `json:"distribution_id"`
	Claimant       solana.PublicKey `json:"claimant"`
	Claimed        uint64           `json:"claimed"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ClaimResult reports the outcome of a successful claim.
type ClaimResult struct {
	// Claimed is the claimant's new cumulative total.
	Claimed uint64 `json:"claimed"`
	// Amount is the delta actually transferred by this claim.
	Amount uint64 `json:"amount"`
}

// ConfigKey derives the stable address identifying a distribution's config
// entity on the ledger. The vault address and vault authority both derive
// from it, so holding a distribution ID is enough to reconstruct the whole
// account layout.
func ConfigKey(distributionID string) solana.PublicKey {
	h := sha256.New()
	h.Write([]byte("distributor-config:"))
	h.Write([]byte(distributionID))
	var key solana.PublicKey
	h.Sum(key[:0])
	return key
}
