package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RakeRepo implements ports.RakeRepository over a per-day totals table.
type RakeRepo struct {
	pool Pool
}

// NewRakeRepo creates a new RakeRepo.
func NewRakeRepo(pool Pool) *RakeRepo {
	return &RakeRepo{pool: pool}
}

// AddInTx upserts the day's rake totals inside the settlement transaction, so
// rake accounting commits atomically with the payout it came from.
func (r *RakeRepo) AddInTx(ctx context.Context, tx pgx.Tx, day time.Time, usd, sol decimal.Decimal) error {
	query := `INSERT INTO rake_stats (day, rake_usd, rake_sol)
		VALUES ($1, $2, $3)
		ON CONFLICT (day) DO UPDATE SET
			rake_usd = rake_stats.rake_usd + EXCLUDED.rake_usd,
			rake_sol = rake_stats.rake_sol + EXCLUDED.rake_sol`

	_, err := tx.Exec(ctx, query, day.UTC().Truncate(24*time.Hour), usd, sol)
	if err != nil {
		return fmt.Errorf("upsert rake stats: %w", err)
	}
	return nil
}

// Totals sums collected rake over [from, to] inclusive of both days.
func (r *RakeRepo) Totals(ctx context.Context, from, to time.Time) (usd, sol decimal.Decimal, err error) {
	query := `SELECT COALESCE(SUM(rake_usd), 0), COALESCE(SUM(rake_sol), 0)
		FROM rake_stats
		WHERE day >= $1 AND day <= $2`

	err = r.pool.QueryRow(ctx, query,
		from.UTC().Truncate(24*time.Hour), to.UTC().Truncate(24*time.Hour),
	).Scan(&usd, &sol)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum rake stats: %w", err)
	}
	return usd, sol, nil
}
