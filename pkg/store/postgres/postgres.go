// Package postgres implements the distributor's durable account storage on
// PostgreSQL. Each Update* call runs as a row-locked transaction, giving
// the serializable single-writer-per-account semantics the core relies on.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianxyz/distributor/pkg/distributor"
	"github.com/meridianxyz/distributor/pkg/merkle"
)

// uniqueViolation is the PostgreSQL error code for duplicate primary keys.
const uniqueViolation = "23505"

type Config struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	return nil
}

// Store is a distributor.Store backed by PostgreSQL.
type Store struct {
	log *slog.Logger
	cfg Config
}

func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Connect opens a pgx pool against connStr and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

func (s *Store) CreateDistribution(ctx context.Context, dist distributor.Distribution) error {
	s.log.Debug("postgres/store: creating distribution", "id", dist.ID)

	_, err := s.cfg.Pool.Exec(ctx, `
		INSERT INTO distributions (id, root, admin, mint, token_vault, shutdown, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dist.ID, dist.Root[:], dist.Admin.String(), dist.Mint.String(), dist.TokenVault.String(),
		dist.Shutdown, dist.CreatedAt, dist.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("failed to create distribution %s: %w", dist.ID, distributor.ErrExists)
		}
		return fmt.Errorf("failed to create distribution: %w", err)
	}
	return nil
}

func (s *Store) GetDistribution(ctx context.Context, id string) (distributor.Distribution, error) {
	row := s.cfg.Pool.QueryRow(ctx, `
		SELECT id, root, admin, mint, token_vault, shutdown, created_at, updated_at
		FROM distributions WHERE id = $1`, id)
	return scanDistribution(row, id)
}

func (s *Store) GetClaimRecord(ctx context.Context, id string, claimant solana.PublicKey) (distributor.ClaimRecord, error) {
	if _, err := s.GetDistribution(ctx, id); err != nil {
		return distributor.ClaimRecord{}, err
	}

	var claimed int64
	var updatedAt time.Time
	err := s.cfg.Pool.QueryRow(ctx, `
		SELECT claimed, updated_at FROM claim_records
		WHERE distribution_id = $1 AND claimant = $2`, id, claimant.String(),
	).Scan(&claimed, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return distributor.ClaimRecord{DistributionID: id, Claimant: claimant}, nil
	}
	if err != nil {
		return distributor.ClaimRecord{}, fmt.Errorf("failed to get claim record: %w", err)
	}

	return distributor.ClaimRecord{
		DistributionID: id,
		Claimant:       claimant,
		Claimed:        uint64(claimed),
		UpdatedAt:      updatedAt,
	}, nil
}

func (s *Store) UpdateDistribution(ctx context.Context, id string, fn func(dist *distributor.Distribution) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, root, admin, mint, token_vault, shutdown, created_at, updated_at
			FROM distributions WHERE id = $1 FOR UPDATE`, id)
		dist, err := scanDistribution(row, id)
		if err != nil {
			return err
		}

		if err := fn(&dist); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE distributions
			SET root = $2, admin = $3, shutdown = $4, updated_at = $5
			WHERE id = $1`,
			dist.ID, dist.Root[:], dist.Admin.String(), dist.Shutdown, dist.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update distribution: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateClaim(ctx context.Context, id string, claimant solana.PublicKey, fn func(dist distributor.Distribution, rec *distributor.ClaimRecord) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		// Claims read the distribution under a share lock: concurrent
		// claims proceed together, while root updates and shutdown (FOR
		// UPDATE) serialize against all of them.
		row := tx.QueryRow(ctx, `
			SELECT id, root, admin, mint, token_vault, shutdown, created_at, updated_at
			FROM distributions WHERE id = $1 FOR SHARE`, id)
		dist, err := scanDistribution(row, id)
		if err != nil {
			return err
		}

		// First claim creates the record zero-valued; the row lock then
		// serializes claims by the same claimant.
		_, err = tx.Exec(ctx, `
			INSERT INTO claim_records (distribution_id, claimant, claimed, updated_at)
			VALUES ($1, $2, 0, $3)
			ON CONFLICT (distribution_id, claimant) DO NOTHING`,
			id, claimant.String(), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to create claim record: %w", err)
		}

		rec := distributor.ClaimRecord{DistributionID: id, Claimant: claimant}
		var claimed int64
		err = tx.QueryRow(ctx, `
			SELECT claimed, updated_at FROM claim_records
			WHERE distribution_id = $1 AND claimant = $2 FOR UPDATE`,
			id, claimant.String(),
		).Scan(&claimed, &rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to lock claim record: %w", err)
		}
		rec.Claimed = uint64(claimed)

		if err := fn(dist, &rec); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE claim_records SET claimed = $3, updated_at = $4
			WHERE distribution_id = $1 AND claimant = $2`,
			id, claimant.String(), int64(rec.Claimed), rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update claim record: %w", err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.cfg.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDistribution(row rowScanner, id string) (distributor.Distribution, error) {
	var dist distributor.Distribution
	var root []byte
	var admin, mint, vault string

	err := row.Scan(&dist.ID, &root, &admin, &mint, &vault, &dist.Shutdown, &dist.CreatedAt, &dist.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return distributor.Distribution{}, fmt.Errorf("distribution %s: %w", id, distributor.ErrNotFound)
	}
	if err != nil {
		return distributor.Distribution{}, fmt.Errorf("failed to scan distribution: %w", err)
	}

	dist.Root, err = merkle.HashFromBytes(root)
	if err != nil {
		return distributor.Distribution{}, fmt.Errorf("failed to parse stored root: %w", err)
	}
	if dist.Admin, err = solana.PublicKeyFromBase58(admin); err != nil {
		return distributor.Distribution{}, fmt.Errorf("failed to parse stored admin: %w", err)
	}
	if dist.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
		return distributor.Distribution{}, fmt.Errorf("failed to parse stored mint: %w", err)
	}
	if dist.TokenVault, err = solana.PublicKeyFromBase58(vault); err != nil {
		return distributor.Distribution{}, fmt.Errorf("failed to parse stored vault: %w", err)
	}
	return dist, nil
}
