// Package models holds the policy aggregate and the pure pricing and
// eligibility rules applied to it.
package models

import (
	"math/big"
	"time"

	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
)

const (
	MinStrike      = 1
	MaxStrike      = 100
	MinDurationDay = 1
	MaxDurationDay = 365

	premiumDenominator = 1_000_000
)

// Status is derived from the stored record, the clock and the current score.
// Only Claimed is ever persisted (as the claimed flag).
type Status string

const (
	StatusActive    Status = "active"
	StatusClaimable Status = "claimable"
	StatusClaimed   Status = "claimed"
	StatusExpired   Status = "expired"
)

// Reason explains a claim eligibility verdict.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonNotFound           Reason = "not_found"
	ReasonExpired            Reason = "expired"
	ReasonAlreadyClaimed     Reason = "already_claimed"
	ReasonNotBreached        Reason = "not_breached"
	ReasonSubjectUnavailable Reason = "subject_unavailable"
)

// Terms are the buyer-chosen parameters of a policy.
type Terms struct {
	SubjectID    domain.SubjectID
	StrikeScore  uint8
	DurationDays uint32
	PayoutAmount uint64
}

// Validate checks the ranges the engine accepts. Subject registration is
// checked separately against the registry.
func (t Terms) Validate() error {
	if t.SubjectID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	if t.StrikeScore < MinStrike || t.StrikeScore > MaxStrike {
		return dErrors.Newf(dErrors.CodeValidation, "strike_score must be between %d and %d", MinStrike, MaxStrike)
	}
	if t.DurationDays < MinDurationDay || t.DurationDays > MaxDurationDay {
		return dErrors.Newf(dErrors.CodeValidation, "duration_days must be between %d and %d", MinDurationDay, MaxDurationDay)
	}
	if t.PayoutAmount == 0 {
		return dErrors.New(dErrors.CodeValidation, "payout_amount must be positive")
	}
	return nil
}

// Premium prices the terms as
// payout * ((100 - strike) * 100) * duration / 1_000_000, floored at
// minPremium. The product is computed in big-int arithmetic; a premium that
// does not fit in uint64 is rejected.
func (t Terms) Premium(minPremium uint64) (uint64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	p := new(big.Int).SetUint64(t.PayoutAmount)
	p.Mul(p, big.NewInt(int64(MaxStrike-int(t.StrikeScore))*100))
	p.Mul(p, big.NewInt(int64(t.DurationDays)))
	p.Quo(p, big.NewInt(premiumDenominator))
	if !p.IsUint64() {
		return 0, dErrors.New(dErrors.CodeValidation, "premium exceeds the representable amount")
	}
	premium := p.Uint64()
	if premium < minPremium {
		premium = minPremium
	}
	return premium, nil
}

// Policy is one issued obligation. A stored Policy always exists; absence is
// reported by the store as not found.
type Policy struct {
	ID           domain.PolicyID
	SubjectID    domain.SubjectID
	StrikeScore  uint8
	Expiry       time.Time
	PayoutAmount uint64
	Premium      uint64
	// Holder is the buyer of record. The current claim token owner, not the
	// holder, is entitled to claim.
	Holder    domain.AccountID
	Claimed   bool
	CreatedAt time.Time
}

// NewPolicy issues a policy for terms starting at now.
func NewPolicy(id domain.PolicyID, terms Terms, premium uint64, holder domain.AccountID, now time.Time) (*Policy, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy id must be non-zero")
	}
	if holder.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy holder is required")
	}
	return &Policy{
		ID:           id,
		SubjectID:    terms.SubjectID,
		StrikeScore:  terms.StrikeScore,
		Expiry:       now.Add(time.Duration(terms.DurationDays) * 24 * time.Hour),
		PayoutAmount: terms.PayoutAmount,
		Premium:      premium,
		Holder:       holder,
		CreatedAt:    now,
	}, nil
}

// IsExpired reports whether now is at or past expiry.
func (p *Policy) IsExpired(now time.Time) bool {
	return !now.Before(p.Expiry)
}

// Breached reports whether score pays out. Equality does not.
func (p *Policy) Breached(score uint8) bool {
	return score < p.StrikeScore
}

// Open reports whether the policy can still be claimed at now, regardless of
// the score.
func (p *Policy) Open(now time.Time) Reason {
	switch {
	case p.Claimed:
		return ReasonAlreadyClaimed
	case p.IsExpired(now):
		return ReasonExpired
	default:
		return ReasonOK
	}
}

// Eligibility evaluates the claim checks in the order a claim applies them.
func (p *Policy) Eligibility(now time.Time, score uint8) Reason {
	if r := p.Open(now); r != ReasonOK {
		return r
	}
	if !p.Breached(score) {
		return ReasonNotBreached
	}
	return ReasonOK
}

// Status derives the lifecycle state.
func (p *Policy) Status(now time.Time, score uint8) Status {
	switch {
	case p.Claimed:
		return StatusClaimed
	case p.IsExpired(now):
		return StatusExpired
	case p.Breached(score):
		return StatusClaimable
	default:
		return StatusActive
	}
}

// MarkClaimed flips the claimed flag. It can only happen once.
func (p *Policy) MarkClaimed() error {
	if p.Claimed {
		return dErrors.New(dErrors.CodeInvalidState, "already claimed")
	}
	p.Claimed = true
	return nil
}

// ReasonError converts a failed eligibility verdict into the error a claim
// returns for it.
func ReasonError(r Reason) error {
	switch r {
	case ReasonOK:
		return nil
	case ReasonNotFound:
		return dErrors.New(dErrors.CodeNotFound, "policy not found")
	case ReasonAlreadyClaimed:
		return dErrors.New(dErrors.CodeInvalidState, "already claimed")
	case ReasonExpired:
		return dErrors.New(dErrors.CodeInvalidState, "policy expired")
	case ReasonNotBreached:
		return dErrors.New(dErrors.CodeInvalidState, "strike not breached")
	case ReasonSubjectUnavailable:
		return dErrors.New(dErrors.CodeInvalidState, "subject unavailable")
	default:
		return dErrors.Newf(dErrors.CodeInternal, "unknown eligibility reason %q", r)
	}
}

func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
