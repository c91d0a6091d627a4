//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"derisk/internal/platform/postgres"
)

// PostgresContainer wraps a migrated Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("derisk"),
		tcpostgres.WithUsername("derisk"),
		tcpostgres.WithPassword("derisk"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateTables empties tables between tests and resets their sequences.
// The singleton vault ledger row is re-seeded.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	if _, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))); err != nil {
		return err
	}
	for _, t := range tables {
		if t == "vault_ledger" {
			if _, err := p.DB.ExecContext(ctx, `INSERT INTO vault_ledger (id) VALUES (1)`); err != nil {
				return err
			}
		}
		if t == "policies" {
			if _, err := p.DB.ExecContext(ctx, `ALTER SEQUENCE policy_ids RESTART WITH 1`); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResetLedger empties every ledger table.
func (p *PostgresContainer) ResetLedger(ctx context.Context) error {
	return p.TruncateTables(ctx,
		"score_changes", "policies", "subjects", "total_insured",
		"asset_balances", "asset_allowances", "claim_tokens", "outbox", "vault_ledger",
	)
}
