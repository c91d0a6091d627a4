package service

import (
	"context"
	"strconv"

	"derisk/internal/policy/models"
	"derisk/pkg/domain"
	audit "derisk/pkg/platform/audit"
	"derisk/pkg/requestcontext"
)

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, p *models.Policy, account domain.AccountID, amount uint64) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"policy_id", p.ID,
			"subject_id", p.SubjectID,
			"account", account,
			"amount", amount,
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Subject:   p.SubjectID.String(),
		PolicyID:  uint64(p.ID),
		Account:   account.String(),
		Amount:    strconv.FormatUint(amount, 10),
		RequestID: requestID,
		ActorID:   s.cfg.Account.String(),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
