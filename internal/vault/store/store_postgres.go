package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"derisk/internal/vault/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/tx"
)

// PostgresStore keeps the ledger in the singleton vault_ledger row created
// by the schema migration.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context) (models.Ledger, error) {
	var assets, shares, self string
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT total_assets::text, total_shares::text, self_shares::text
		FROM vault_ledger WHERE id = 1
	`).Scan(&assets, &shares, &self)
	if err != nil {
		return models.Ledger{}, fmt.Errorf("load vault ledger: %w", err)
	}
	var l models.Ledger
	for _, f := range []struct {
		raw string
		dst *uint64
	}{{assets, &l.TotalAssets}, {shares, &l.TotalShares}, {self, &l.SelfShares}} {
		v, err := strconv.ParseUint(f.raw, 10, 64)
		if err != nil {
			return models.Ledger{}, fmt.Errorf("parse vault ledger: %w", err)
		}
		*f.dst = v
	}
	return l, nil
}

func (s *PostgresStore) Save(ctx context.Context, l models.Ledger) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		UPDATE vault_ledger
		SET total_assets = $1::numeric, total_shares = $2::numeric, self_shares = $3::numeric
		WHERE id = 1
	`, strconv.FormatUint(l.TotalAssets, 10), strconv.FormatUint(l.TotalShares, 10), strconv.FormatUint(l.SelfShares, 10))
	if err != nil {
		return fmt.Errorf("save vault ledger: %w", err)
	}
	return nil
}

func (s *PostgresStore) Engine(ctx context.Context) (domain.AccountID, error) {
	var engine string
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT engine_account FROM vault_ledger WHERE id = 1`).Scan(&engine)
	if err != nil {
		return "", fmt.Errorf("load vault engine: %w", err)
	}
	return domain.AccountID(engine), nil
}

func (s *PostgresStore) SetEngine(ctx context.Context, engine domain.AccountID) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE vault_ledger SET engine_account = $1 WHERE id = 1`, engine.String())
	if err != nil {
		return fmt.Errorf("save vault engine: %w", err)
	}
	return nil
}
