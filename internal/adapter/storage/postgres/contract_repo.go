package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ContractRepo implements ports.ContractRepository.
type ContractRepo struct {
	pool Pool
}

// NewContractRepo creates a new ContractRepo.
func NewContractRepo(pool Pool) *ContractRepo {
	return &ContractRepo{pool: pool}
}

const contractColumns = `id, creator_id, acceptor_id, game, amount_usd, amount_sol, match_type, status, room_id,
		winner_id, loser_id, rake_usd, rake_sol, winner_payout_usd, winner_payout_sol,
		created_at, accepted_at, started_at, completed_at`

func scanContract(row pgx.Row) (*domain.Contract, error) {
	c := &domain.Contract{}
	err := row.Scan(
		&c.ID, &c.CreatorID, &c.AcceptorID, &c.Game, &c.AmountUSD, &c.AmountSOL,
		&c.MatchType, &c.Status, &c.RoomID,
		&c.WinnerID, &c.LoserID, &c.RakeUSD, &c.RakeSOL,
		&c.WinnerPayoutUSD, &c.WinnerPayoutSOL,
		&c.CreatedAt, &c.AcceptedAt, &c.StartedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new contract. Only creation-time fields are written; result
// fields stay NULL until completion.
func (r *ContractRepo) Create(ctx context.Context, c *domain.Contract) error {
	query := `INSERT INTO contracts (id, creator_id, game, amount_usd, amount_sol, match_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.CreatorID, c.Game, c.AmountUSD, c.AmountSOL,
		c.MatchType, c.Status, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

// GetByID fetches a contract by its UUID (without locking).
func (r *ContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	c, err := scanContract(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract by id: %w", err)
	}
	return c, nil
}

// GetByIDForUpdate fetches a contract by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *ContractRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`

	c, err := scanContract(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract for update: %w", err)
	}
	return c, nil
}

// Update writes all mutable contract fields within a transaction.
func (r *ContractRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.Contract) error {
	query := `UPDATE contracts SET
		acceptor_id = $1, amount_sol = $2, status = $3, room_id = $4,
		winner_id = $5, loser_id = $6, rake_usd = $7, rake_sol = $8,
		winner_payout_usd = $9, winner_payout_sol = $10,
		accepted_at = $11, started_at = $12, completed_at = $13
		WHERE id = $14`

	tag, err := tx.Exec(ctx, query,
		c.AcceptorID, c.AmountSOL, c.Status, c.RoomID,
		c.WinnerID, c.LoserID, c.RakeUSD, c.RakeSOL,
		c.WinnerPayoutUSD, c.WinnerPayoutSOL,
		c.AcceptedAt, c.StartedAt, c.CompletedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract not found: %s", c.ID)
	}
	return nil
}

// ListOpen returns pending contracts for a game, newest first.
func (r *ContractRepo) ListOpen(ctx context.Context, game string, status domain.ContractStatus, limit int) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
		WHERE game = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, game, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list open contracts: %w", err)
	}
	defer rows.Close()

	return collectContracts(rows)
}

// ListStale returns accepted or started contracts whose last lifecycle event
// is older than the cutoff.
func (r *ContractRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
		WHERE status IN ('accepted', 'started')
		AND COALESCE(started_at, accepted_at) < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale contracts: %w", err)
	}
	defer rows.Close()

	return collectContracts(rows)
}

func collectContracts(rows pgx.Rows) ([]domain.Contract, error) {
	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}
