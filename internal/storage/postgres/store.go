package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityDesk/internal/model"
)

// Store provides Postgres persistence for transaction history and settings.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	chain_id     BIGINT NOT NULL,
	hash         TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	target       TEXT NOT NULL,
	method       TEXT NOT NULL,
	summary      TEXT NOT NULL,
	status       TEXT NOT NULL,
	gas_limit    BIGINT NOT NULL,
	block_number BIGINT,
	submitted_at TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS user_settings (
	account          TEXT PRIMARY KEY,
	slippage_bps     INTEGER NOT NULL,
	deadline_seconds BIGINT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutTransaction upserts a single record.
func (s *Store) PutTransaction(ctx context.Context, rec model.TransactionRecord) error {
	return s.UpsertTransactions(ctx, []model.TransactionRecord{rec})
}

// UpsertTransactions inserts or updates transaction records by hash. The
// submitted_at and summary of the first insert are preserved.
func (s *Store) UpsertTransactions(ctx context.Context, recs []model.TransactionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		var block *int64
		if rec.BlockNumber > 0 {
			n := int64(rec.BlockNumber)
			block = &n
		}
		batch.Queue(`
			INSERT INTO transactions (
				chain_id, hash, sender, target, method, summary, status, gas_limit, block_number, submitted_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (hash)
			DO UPDATE SET
				status = EXCLUDED.status,
				block_number = COALESCE(EXCLUDED.block_number, transactions.block_number),
				updated_at = now()
		`,
			int64(rec.ChainID),
			rec.Hash,
			rec.From,
			rec.To,
			rec.Method,
			rec.Summary,
			rec.Status,
			int64(rec.GasLimit),
			block,
			rec.SubmittedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSettings returns the stored slippage and deadline for an account.
func (s *Store) LoadSettings(ctx context.Context, account string) (int, int64, bool, error) {
	if account == "" {
		return 0, 0, false, fmt.Errorf("settings account required")
	}
	var (
		bps      int
		deadline int64
	)
	row := s.pool.QueryRow(ctx, `SELECT slippage_bps, deadline_seconds FROM user_settings WHERE account=$1`, account)
	if err := row.Scan(&bps, &deadline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return bps, deadline, true, nil
}

// SaveSettings upserts the slippage and deadline for an account.
func (s *Store) SaveSettings(ctx context.Context, account string, bps int, deadlineSeconds int64) error {
	if account == "" {
		return fmt.Errorf("settings account required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_settings (account, slippage_bps, deadline_seconds, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account) DO UPDATE
		SET slippage_bps = EXCLUDED.slippage_bps, deadline_seconds = EXCLUDED.deadline_seconds, updated_at = now()
	`, account, bps, deadlineSeconds)
	return err
}
