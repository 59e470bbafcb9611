package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type account struct {
	owner  solana.PublicKey
	amount uint64
}

// Memory is an in-process Ledger. Every method applies atomically under a
// single mutex, matching the host-runtime guarantee that no two operations
// observe the same account mid-mutation.
type Memory struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*account
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[solana.PublicKey]*account),
	}
}

func (m *Memory) CreateAccount(ctx context.Context, key solana.PublicKey, owner Authority) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[key]; ok {
		return fmt.Errorf("failed to create account %s: %w", key, ErrAccountExists)
	}
	m.accounts[key] = &account{owner: owner.Key()}
	return nil
}

func (m *Memory) Mint(ctx context.Context, key solana.PublicKey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[key]
	if !ok {
		return fmt.Errorf("failed to mint to %s: %w", key, ErrAccountNotFound)
	}
	acct.amount += amount
	return nil
}

func (m *Memory) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[key]
	if !ok {
		return 0, fmt.Errorf("failed to read balance of %s: %w", key, ErrAccountNotFound)
	}
	return acct.amount, nil
}

func (m *Memory) Transfer(ctx context.Context, from, to solana.PublicKey, authority Authority, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.accounts[from]
	if !ok {
		return fmt.Errorf("failed to transfer from %s: %w", from, ErrAccountNotFound)
	}
	if src.owner != authority.Key() {
		return fmt.Errorf("failed to transfer from %s: %w", from, ErrUnauthorized)
	}
	if src.amount < amount {
		return fmt.Errorf("failed to transfer %d from %s (balance %d): %w", amount, from, src.amount, ErrInsufficientBalance)
	}

	dst, ok := m.accounts[to]
	if !ok {
		// Receiving accounts are created on first use, owned by themselves.
		dst = &account{owner: to}
		m.accounts[to] = dst
	}

	src.amount -= amount
	dst.amount += amount
	return nil
}
