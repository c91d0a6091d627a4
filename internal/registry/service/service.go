// Package service implements the score registry: per-subject safety scores
// written either by the admin authority or by a verified attestation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"derisk/internal/attestation"
	"derisk/internal/authority"
	"derisk/internal/registry/metrics"
	"derisk/internal/registry/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	audit "derisk/pkg/platform/audit"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
	"derisk/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, subject *models.Subject) error
	FindByID(ctx context.Context, id domain.SubjectID) (*models.Subject, error)
	Update(ctx context.Context, subject *models.Subject) error
	AppendChange(ctx context.Context, change models.ScoreChange) error
	ListChanges(ctx context.Context, id domain.SubjectID) ([]models.ScoreChange, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns subject records. Every write runs inside the registry guard;
// reads go straight to the store.
type Service struct {
	store          Store
	roles          *authority.Table
	guard          *tx.Guard
	verifier       attestation.Verifier
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithGuard(g *tx.Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

// WithVerifier installs the proof verifier at construction time. SetVerifier
// replaces it later under admin authority.
func WithVerifier(v attestation.Verifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

func New(store Store, roles *authority.Table, opts ...Option) *Service {
	s := &Service{
		store:  store,
		roles:  roles,
		logger: slog.Default(),
		tracer: otel.Tracer("derisk/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = tx.NewGuard("registry")
	}
	return s
}

// Register adds a subject with its initial score.
func (s *Service) Register(ctx context.Context, p authority.Principal, id domain.SubjectID, initialScore uint8) (*models.Subject, error) {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	subject, err := models.NewSubject(id, initialScore, now)
	if err != nil {
		return nil, asValidation(err)
	}

	err = s.guard.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, subject); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeInvalidState, "subject %s already registered", id)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register subject")
		}
		if err := s.appendChange(ctx, id, 0, initialScore, models.SourceManual, now); err != nil {
			return err
		}
		s.afterCommitAudit(ctx, audit.EventSubjectRegistered, id, &initialScore, "", p.Account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementScoreUpdate(string(models.SourceManual))
	return subject, nil
}

// UpdateManual overwrites a subject's score under admin authority.
func (s *Service) UpdateManual(ctx context.Context, p authority.Principal, id domain.SubjectID, newScore uint8) (*models.Subject, error) {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return nil, err
	}
	if newScore > attestation.MaxScore {
		return nil, dErrors.Newf(dErrors.CodeValidation, "score must be at most %d", attestation.MaxScore)
	}

	var updated *models.Subject
	err := s.guard.RunInTx(ctx, func(ctx context.Context) error {
		subject, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		old, err := subject.SetScore(newScore)
		if err != nil {
			return asValidation(err)
		}
		if err := s.save(ctx, subject); err != nil {
			return err
		}
		if err := s.appendChange(ctx, id, old, newScore, models.SourceManual, requestcontext.Now(ctx)); err != nil {
			return err
		}
		s.afterCommitAudit(ctx, audit.EventScoreUpdated, id, &newScore, string(models.SourceManual), p.Account)
		updated = subject
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementScoreUpdate(string(models.SourceManual))
	return updated, nil
}

// BindProgram sets the only program trusted to attest for the subject.
func (s *Service) BindProgram(ctx context.Context, p authority.Principal, id domain.SubjectID, program attestation.ProgramID) error {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return err
	}
	if id.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	if program.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "program_id must not be zero")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		subject, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := subject.BindProgram(program); err != nil {
			return asValidation(err)
		}
		if err := s.save(ctx, subject); err != nil {
			return err
		}
		s.afterCommitAudit(ctx, audit.EventProgramBound, id, nil, program.String(), p.Account)
		return nil
	})
}

// SetVerifier replaces the proof verifier.
func (s *Service) SetVerifier(ctx context.Context, p authority.Principal, v attestation.Verifier) error {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return err
	}
	if v == nil {
		return dErrors.New(dErrors.CodeValidation, "verifier is required")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		prev := s.verifier
		s.verifier = v
		tx.OnRollback(ctx, func() { s.verifier = prev })
		s.afterCommitAudit(ctx, audit.EventVerifierSet, "", nil, "", p.Account)
		return nil
	})
}

// UpdateWithAttestation applies a proof-gated score update. The journal
// length is checked before anything else, and any verifier failure aborts
// the update with CodeProofRejected and no state change.
func (s *Service) UpdateWithAttestation(ctx context.Context, id domain.SubjectID, journal, seal []byte) (*models.Subject, error) {
	ctx, span := s.tracer.Start(ctx, "registry.UpdateWithAttestation",
		trace.WithAttributes(attribute.String("subject_id", id.String())))
	defer span.End()

	subject, err := s.updateWithAttestation(ctx, id, journal, seal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.GetCode(err)))
		if dErrors.HasCode(err, dErrors.CodeProofRejected) {
			s.metrics.IncrementProofRejected()
			s.logAudit(ctx, audit.EventProofRejected, id, nil, err.Error(), requestcontext.Account(ctx))
		}
		return nil, err
	}
	s.metrics.IncrementScoreUpdate(string(models.SourceProof))
	return subject, nil
}

// verify treats a verifier panic as a failed proof.
func (s *Service) verify(ctx context.Context, seal []byte, program attestation.ProgramID, digest [32]byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "verifier panicked", "panic", r)
			err = fmt.Errorf("verifier panicked: %v", r)
		}
	}()
	return s.verifier.Verify(ctx, seal, program, digest)
}

func (s *Service) updateWithAttestation(ctx context.Context, id domain.SubjectID, journal, seal []byte) (*models.Subject, error) {
	if len(journal) != attestation.JournalSize {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"journal must be exactly %d bytes, got %d", attestation.JournalSize, len(journal))
	}

	var updated *models.Subject
	err := s.guard.RunInTx(ctx, func(ctx context.Context) error {
		subject, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if s.verifier == nil {
			return dErrors.New(dErrors.CodeInvalidState, "no verifier configured")
		}
		if subject.Program == nil {
			return dErrors.Newf(dErrors.CodeInvalidState, "no program bound for subject %s", id)
		}

		digest := attestation.Digest(journal)
		start := time.Now()
		verr := s.verify(ctx, seal, *subject.Program, digest)
		s.metrics.ObserveVerify(start)
		if verr != nil {
			return dErrors.Wrap(verr, dErrors.CodeProofRejected, "proof verification failed")
		}

		decoded, err := attestation.DecodeJournal(journal)
		if err != nil {
			return err
		}
		old, stale := subject.ApplyJournal(decoded)
		if err := s.save(ctx, subject); err != nil {
			return err
		}
		if err := s.appendChange(ctx, id, old, subject.Score, models.SourceProof, requestcontext.Now(ctx)); err != nil {
			return err
		}

		score := subject.Score
		if stale {
			// Accepted on purpose: ordering of submissions is not enforced.
			s.logger.WarnContext(ctx, "stale attestation accepted",
				"subject_id", id,
				"journal_timestamp", decoded.Timestamp,
				"verification_count", subject.VerificationCount)
			tx.AfterCommit(ctx, func(context.Context) { s.metrics.IncrementStaleAttestation() })
			s.afterCommitAudit(ctx, audit.EventStaleAttestation, id, &score, "", requestcontext.Account(ctx))
		}
		s.afterCommitAudit(ctx, audit.EventScoreAttested, id, &score, string(models.SourceProof), requestcontext.Account(ctx))
		updated = subject
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetScore returns the current score of a registered subject.
func (s *Service) GetScore(ctx context.Context, id domain.SubjectID) (uint8, error) {
	subject, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return subject.Score, nil
}

// GetSubject returns the full subject record.
func (s *Service) GetSubject(ctx context.Context, id domain.SubjectID) (*models.Subject, error) {
	return s.load(ctx, id)
}

// History returns the score change log, oldest first.
func (s *Service) History(ctx context.Context, id domain.SubjectID) ([]models.ScoreChange, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	changes, err := s.store.ListChanges(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load score history")
	}
	return changes, nil
}

func (s *Service) load(ctx context.Context, id domain.SubjectID) (*models.Subject, error) {
	if id.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	subject, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "subject %s not registered", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
	}
	return subject, nil
}

func (s *Service) save(ctx context.Context, subject *models.Subject) error {
	if err := s.store.Update(ctx, subject); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store subject")
	}
	return nil
}

func (s *Service) appendChange(ctx context.Context, id domain.SubjectID, old, updated uint8, source models.Source, at time.Time) error {
	err := s.store.AppendChange(ctx, models.ScoreChange{
		SubjectID: id,
		OldScore:  old,
		NewScore:  updated,
		Source:    source,
		ChangedAt: at,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record score change")
	}
	return nil
}

func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
