package service

import (
	"context"

	"derisk/pkg/domain"
	audit "derisk/pkg/platform/audit"
	"derisk/pkg/platform/tx"
	"derisk/pkg/requestcontext"
)

// afterCommitAudit defers logAudit until the enclosing transaction commits.
func (s *Service) afterCommitAudit(ctx context.Context, event audit.AuditEvent, subject domain.SubjectID, score *uint8, reason string, actor domain.AccountID) {
	tx.AfterCommit(ctx, func(ctx context.Context) {
		s.logAudit(ctx, event, subject, score, reason, actor)
	})
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, subject domain.SubjectID, score *uint8, reason string, actor domain.AccountID) {
	requestID := requestcontext.RequestID(ctx)
	args := []any{
		"event", string(event),
		"log_type", "audit",
		"subject_id", subject,
		"request_id", requestID,
	}
	if score != nil {
		args = append(args, "score", *score)
	}
	if reason != "" {
		args = append(args, "reason", reason)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Subject:   subject.String(),
		Score:     score,
		Reason:    reason,
		RequestID: requestID,
		ActorID:   actor.String(),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
