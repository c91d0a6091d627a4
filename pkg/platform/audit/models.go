package audit

import (
	"context"
	"time"
)

// EventCategory classifies settlement events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategorySettlement covers events that move value or change who may be paid.
	// These require durable storage and long retention.
	// Examples: policy issued, payout released, premium deposited.
	CategorySettlement EventCategory = "settlement"

	// CategorySecurity covers trust and authority events.
	// Examples: proof rejected, verifier replaced, emergency withdrawal.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine administrative activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Subject is the insured subject the event concerns, when there is one.
	Subject  string
	PolicyID uint64
	Account  string
	// Amount is a decimal string so u128 metadata survives serialization.
	Amount    string
	Score     *uint8
	Reason    string
	RequestID string
	// ActorID tracks who performed the action when different from Account.
	ActorID string
}

type AuditEvent string

const (
	// Registry events
	EventSubjectRegistered AuditEvent = "subject_registered"
	EventScoreUpdated      AuditEvent = "score_updated"
	EventScoreAttested     AuditEvent = "score_attested"
	EventProgramBound      AuditEvent = "program_bound"
	EventVerifierSet       AuditEvent = "verifier_set"
	EventProofRejected     AuditEvent = "proof_rejected"
	EventStaleAttestation  AuditEvent = "stale_attestation_accepted"

	// Vault events
	EventPremiumDeposited  AuditEvent = "premium_deposited"
	EventPayoutWithdrawn   AuditEvent = "payout_withdrawn"
	EventEmergencyWithdraw AuditEvent = "emergency_withdraw"
	EventEngineBound       AuditEvent = "engine_bound"

	// Policy events
	EventPolicyIssued  AuditEvent = "policy_issued"
	EventPolicyClaimed AuditEvent = "policy_claimed"

	// Asset events
	EventAssetMinted AuditEvent = "asset_minted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPremiumDeposited: CategorySettlement,
	EventPayoutWithdrawn:  CategorySettlement,
	EventPolicyIssued:     CategorySettlement,
	EventPolicyClaimed:    CategorySettlement,
	EventScoreAttested:    CategorySettlement,
	EventScoreUpdated:     CategorySettlement,

	EventProofRejected:     CategorySecurity,
	EventStaleAttestation:  CategorySecurity,
	EventVerifierSet:       CategorySecurity,
	EventProgramBound:      CategorySecurity,
	EventEmergencyWithdraw: CategorySecurity,
	EventEngineBound:       CategorySecurity,
	EventAssetMinted:       CategorySecurity,

	EventSubjectRegistered: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
