package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"derisk/internal/platform/postgres"
	"derisk/internal/policy/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

// PostgresStore persists policies in the policies table. Ids come from the
// policy_ids sequence; a rolled back issuance leaves a gap, ids stay
// monotonic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) NextID(ctx context.Context) (domain.PolicyID, error) {
	var id int64
	if err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `SELECT nextval('policy_ids')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate policy id: %w", err)
	}
	return domain.PolicyID(id), nil
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Policy) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO policies (policy_id, subject_id, strike_score, expiry, payout_amount,
		                      premium, holder, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9)
	`, int64(p.ID), p.SubjectID.String(), int16(p.StrikeScore), p.Expiry,
		strconv.FormatUint(p.PayoutAmount, 10), strconv.FormatUint(p.Premium, 10),
		p.Holder.String(), p.Claimed, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert policy: %w", postgres.TranslateError(err))
	}
	return nil
}

const selectPolicy = `
	SELECT policy_id, subject_id, strike_score, expiry, payout_amount::text,
	       premium::text, holder, claimed, created_at
	FROM policies`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PolicyID) (*models.Policy, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, selectPolicy+` WHERE policy_id = $1`, int64(id))
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Policy) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE policies SET claimed = $2 WHERE policy_id = $1`, int64(p.ID), p.Claimed)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject domain.SubjectID) ([]*models.Policy, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx,
		selectPolicy+` WHERE subject_id = $1 ORDER BY policy_id`, subject.String())
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()
	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TotalInsured(ctx context.Context, subject domain.SubjectID) (uint64, error) {
	var raw string
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT amount::text FROM total_insured WHERE subject_id = $1`, subject.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load total insured: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse total insured: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) SetTotalInsured(ctx context.Context, subject domain.SubjectID, amount uint64) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO total_insured (subject_id, amount) VALUES ($1, $2::numeric)
		ON CONFLICT (subject_id) DO UPDATE SET amount = EXCLUDED.amount
	`, subject.String(), strconv.FormatUint(amount, 10))
	if err != nil {
		return fmt.Errorf("store total insured: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var (
		id        int64
		subject   string
		strike    int16
		expiry    time.Time
		payout    string
		premium   string
		holder    string
		claimed   bool
		createdAt time.Time
	)
	if err := row.Scan(&id, &subject, &strike, &expiry, &payout, &premium, &holder, &claimed, &createdAt); err != nil {
		return nil, err
	}
	payoutAmount, err := strconv.ParseUint(payout, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse payout: %w", err)
	}
	premiumAmount, err := strconv.ParseUint(premium, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse premium: %w", err)
	}
	return &models.Policy{
		ID:           domain.PolicyID(id),
		SubjectID:    domain.SubjectID(subject),
		StrikeScore:  uint8(strike),
		Expiry:       expiry.UTC(),
		PayoutAmount: payoutAmount,
		Premium:      premiumAmount,
		Holder:       domain.AccountID(holder),
		Claimed:      claimed,
		CreatedAt:    createdAt.UTC(),
	}, nil
}
