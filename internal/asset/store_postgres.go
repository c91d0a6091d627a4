package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"derisk/pkg/domain"
	"derisk/pkg/platform/tx"
)

// PostgresStore keeps amounts in NUMERIC(20,0) columns; values travel as
// decimal text because database/sql cannot bind uint64 above 2^63.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Balance(ctx context.Context, asset domain.AssetID, account domain.AccountID) (uint64, error) {
	return s.readAmount(ctx,
		`SELECT amount::text FROM asset_balances WHERE asset_id = $1 AND account = $2`,
		asset.String(), account.String())
}

func (s *PostgresStore) SetBalance(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount uint64) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO asset_balances (asset_id, account, amount) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (asset_id, account) DO UPDATE SET amount = EXCLUDED.amount
	`, asset.String(), account.String(), strconv.FormatUint(amount, 10))
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Allowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID) (uint64, error) {
	return s.readAmount(ctx,
		`SELECT amount::text FROM asset_allowances WHERE asset_id = $1 AND owner = $2 AND spender = $3`,
		asset.String(), owner.String(), spender.String())
}

func (s *PostgresStore) SetAllowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID, amount uint64) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO asset_allowances (asset_id, owner, spender, amount) VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (asset_id, owner, spender) DO UPDATE SET amount = EXCLUDED.amount
	`, asset.String(), owner.String(), spender.String(), strconv.FormatUint(amount, 10))
	if err != nil {
		return fmt.Errorf("write allowance: %w", err)
	}
	return nil
}

func (s *PostgresStore) readAmount(ctx context.Context, query string, args ...any) (uint64, error) {
	var raw string
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read amount: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return v, nil
}
