package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"derisk/internal/attestation"
	"derisk/internal/platform/postgres"
	"derisk/internal/registry/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

// PostgresStore persists subjects in the subjects table. u128 metadata and
// u64 timestamps are stored as NUMERIC and exchanged as decimal text.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, subject *models.Subject) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO subjects (subject_id, score, registered_at)
		VALUES ($1, $2, $3)
	`, subject.ID.String(), int16(subject.Score), subject.RegisteredAt)
	if err != nil {
		return fmt.Errorf("insert subject: %w", postgres.TranslateError(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.SubjectID) (*models.Subject, error) {
	var (
		score        int16
		program      []byte
		assets       sql.NullString
		liabilities  sql.NullString
		attestedAt   sql.NullString
		verified     int64
		registeredAt time.Time
	)
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT score, program_id, total_assets::text, total_liabilities::text,
		       attested_at::text, verification_count, registered_at
		FROM subjects WHERE subject_id = $1
	`, id.String()).Scan(&score, &program, &assets, &liabilities, &attestedAt, &verified, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subject: %w", err)
	}

	subject := &models.Subject{
		ID:                id,
		Score:             uint8(score),
		VerificationCount: uint64(verified),
		RegisteredAt:      registeredAt,
	}
	if len(program) == len(attestation.ProgramID{}) {
		var p attestation.ProgramID
		copy(p[:], program)
		subject.Program = &p
	}
	if attestedAt.Valid {
		a, err := scanAttestation(assets.String, liabilities.String, attestedAt.String)
		if err != nil {
			return nil, err
		}
		subject.Attestation = a
	}
	return subject, nil
}

func scanAttestation(assets, liabilities, timestamp string) (*models.Attestation, error) {
	ta, err := attestation.ParseUint128(assets)
	if err != nil {
		return nil, fmt.Errorf("parse total_assets: %w", err)
	}
	tl, err := attestation.ParseUint128(liabilities)
	if err != nil {
		return nil, fmt.Errorf("parse total_liabilities: %w", err)
	}
	ts, err := strconv.ParseUint(timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse attested_at: %w", err)
	}
	return &models.Attestation{TotalAssets: ta, TotalLiabilities: tl, Timestamp: ts}, nil
}

func (s *PostgresStore) Update(ctx context.Context, subject *models.Subject) error {
	var (
		program                         []byte
		assets, liabilities, attestedAt sql.NullString
	)
	if subject.Program != nil {
		program = subject.Program[:]
	}
	if a := subject.Attestation; a != nil {
		assets = sql.NullString{String: a.TotalAssets.String(), Valid: true}
		liabilities = sql.NullString{String: a.TotalLiabilities.String(), Valid: true}
		attestedAt = sql.NullString{String: strconv.FormatUint(a.Timestamp, 10), Valid: true}
	}
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		UPDATE subjects
		SET score = $2, program_id = $3, total_assets = $4::numeric,
		    total_liabilities = $5::numeric, attested_at = $6::numeric,
		    verification_count = $7
		WHERE subject_id = $1
	`, subject.ID.String(), int16(subject.Score), program, assets, liabilities, attestedAt,
		int64(subject.VerificationCount))
	if err != nil {
		return fmt.Errorf("update subject: %w", postgres.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendChange(ctx context.Context, change models.ScoreChange) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO score_changes (subject_id, old_score, new_score, source, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, change.SubjectID.String(), int16(change.OldScore), int16(change.NewScore), string(change.Source), change.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert score change: %w", postgres.TranslateError(err))
	}
	return nil
}

func (s *PostgresStore) ListChanges(ctx context.Context, id domain.SubjectID) ([]models.ScoreChange, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT old_score, new_score, source, changed_at
		FROM score_changes WHERE subject_id = $1 ORDER BY id
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list score changes: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreChange
	for rows.Next() {
		var (
			oldScore, newScore int16
			source             string
			changedAt          time.Time
		)
		if err := rows.Scan(&oldScore, &newScore, &source, &changedAt); err != nil {
			return nil, fmt.Errorf("scan score change: %w", err)
		}
		out = append(out, models.ScoreChange{
			SubjectID: id,
			OldScore:  uint8(oldScore),
			NewScore:  uint8(newScore),
			Source:    models.Source(source),
			ChangedAt: changedAt,
		})
	}
	return out, rows.Err()
}
