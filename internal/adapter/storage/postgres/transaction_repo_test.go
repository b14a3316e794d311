package postgres

import (
	"context"
	"testing"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Type:      domain.TransactionTypeLock,
		AmountSOL: testDec(t, "0.1"),
		AmountUSD: testDec(t, "20"),
		Currency:  domain.SettlementCurrency,
		Reference: uuidPtr(uuid.New()),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionColumns() []string {
	return []string{"id", "account_id", "type", "amount_sol", "amount_usd", "currency", "counterparty_id", "reference_id", "created_at"}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	rec := newTestRecord(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(rec.ID, rec.AccountID, rec.Type, rec.AmountSOL, rec.AmountUSD,
			rec.Currency, rec.Counterparty, rec.Reference, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	rec := newTestRecord(t)

	rows := pgxmock.NewRows(transactionColumns()).AddRow(
		rec.ID, rec.AccountID, rec.Type, rec.AmountSOL, rec.AmountUSD,
		rec.Currency, rec.Counterparty, rec.Reference, rec.CreatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(rec.AccountID, 50).
		WillReturnRows(rows)

	result, err := repo.ListByAccount(context.Background(), rec.AccountID, 50)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, rec.ID, result[0].ID)
	assert.Equal(t, domain.TransactionTypeLock, result[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRakeRepo_AddInTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRakeRepo(mock)
	day := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rake_stats").
		WithArgs(day.Truncate(24*time.Hour), testDec(t, "1.80"), testDec(t, "0.009")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.AddInTx(context.Background(), tx, day, testDec(t, "1.80"), testDec(t, "0.009"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRakeRepo_Totals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRakeRepo(mock)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(rake_usd\\), 0\\), COALESCE\\(SUM\\(rake_sol\\), 0\\)").
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows([]string{"rake_usd", "rake_sol"}).
			AddRow(testDec(t, "54.20"), testDec(t, "0.271")))

	usd, sol, err := repo.Totals(context.Background(), from, to)
	require.NoError(t, err)
	assert.True(t, testDec(t, "54.20").Equal(usd))
	assert.True(t, testDec(t, "0.271").Equal(sol))
	assert.NoError(t, mock.ExpectationsWereMet())
}
