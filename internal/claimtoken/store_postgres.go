package claimtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Owner(ctx context.Context, id domain.PolicyID) (domain.AccountID, error) {
	var owner string
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT owner FROM claim_tokens WHERE policy_id = $1`, int64(id)).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find claim token: %w", err)
	}
	return domain.AccountID(owner), nil
}

func (s *PostgresStore) SetOwner(ctx context.Context, id domain.PolicyID, owner domain.AccountID) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO claim_tokens (policy_id, owner) VALUES ($1, $2)
		ON CONFLICT (policy_id) DO UPDATE SET owner = EXCLUDED.owner
	`, int64(id), owner.String())
	if err != nil {
		return fmt.Errorf("write claim token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.PolicyID) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`DELETE FROM claim_tokens WHERE policy_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("burn claim token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("burn claim token: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner domain.AccountID) ([]domain.PolicyID, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT policy_id FROM claim_tokens WHERE owner = $1 ORDER BY policy_id`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list claim tokens: %w", err)
	}
	defer rows.Close()
	var ids []domain.PolicyID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claim token: %w", err)
		}
		ids = append(ids, domain.PolicyID(id))
	}
	return ids, rows.Err()
}
