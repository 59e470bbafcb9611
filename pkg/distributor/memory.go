package distributor

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type claimKey struct {
	distributionID string
	claimant       solana.PublicKey
}

// MemoryStore is an in-process Store. A single mutex per store serializes
// all transactions, which is stricter than the contract requires but
// trivially correct.
type MemoryStore struct {
	mu            sync.Mutex
	distributions map[string]Distribution
	claims        map[claimKey]ClaimRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		distributions: make(map[string]Distribution),
		claims:        make(map[claimKey]ClaimRecord),
	}
}

func (s *MemoryStore) CreateDistribution(ctx context.Context, dist Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.distributions[dist.ID]; ok {
		return fmt.Errorf("failed to create distribution %s: %w", dist.ID, ErrExists)
	}
	s.distributions[dist.ID] = dist
	return nil
}

func (s *MemoryStore) GetDistribution(ctx context.Context, id string) (Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, ok := s.distributions[id]
	if !ok {
		return Distribution{}, fmt.Errorf("failed to get distribution %s: %w", id, ErrNotFound)
	}
	return dist, nil
}

func (s *MemoryStore) GetClaimRecord(ctx context.Context, id string, claimant solana.PublicKey) (ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.distributions[id]; !ok {
		return ClaimRecord{}, fmt.Errorf("failed to get claim record for %s: %w", id, ErrNotFound)
	}

	rec, ok := s.claims[claimKey{distributionID: id, claimant: claimant}]
	if !ok {
		return ClaimRecord{DistributionID: id, Claimant: claimant}, nil
	}
	return rec, nil
}

func (s *MemoryStore) UpdateDistribution(ctx context.Context, id string, fn func(dist *Distribution) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, ok := s.distributions[id]
	if !ok {
		return fmt.Errorf("failed to update distribution %s: %w", id, ErrNotFound)
	}

	// fn mutates a copy; nothing is visible unless it succeeds.
	if err := fn(&dist); err != nil {
		return err
	}
	s.distributions[id] = dist
	return nil
}

func (s *MemoryStore) UpdateClaim(ctx context.Context, id string, claimant solana.PublicKey, fn func(dist Distribution, rec *ClaimRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, ok := s.distributions[id]
	if !ok {
		return fmt.Errorf("failed to update claim for %s: %w", id, ErrNotFound)
	}

	key := claimKey{distributionID: id, claimant: claimant}
	rec, ok := s.claims[key]
	if !ok {
		rec = ClaimRecord{DistributionID: id, Claimant: claimant}
	}

	if err := fn(dist, &rec); err != nil {
		return err
	}
	s.claims[key] = rec
	return nil
}
