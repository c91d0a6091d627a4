// Package accesstoken issues and validates the HS256 bearer tokens of the
// public API. A token's subject is the ledger account its bearer acts as.
package accesstoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	authmw "derisk/pkg/platform/middleware/auth"
)

// Issuer and Audience are what the server expects unless configured otherwise.
const (
	Issuer   = "derisk"
	Audience = "derisk-api"
)

type claims struct {
	jwt.RegisteredClaims
}

// Service signs and checks tokens for one issuer/audience pair.
type Service struct {
	key      []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithLeeway tolerates clock skew between the issuer and this process.
func WithLeeway(d time.Duration) Option {
	return func(s *Service) { s.leeway = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(key, issuer, audience string, opts ...Option) *Service {
	s := &Service{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for account valid for ttl. The server never issues
// tokens on its own; deriskctl and tests do.
func (s *Service) Issue(account domain.AccountID, ttl time.Duration) (string, error) {
	if account.IsZero() {
		return "", dErrors.New(dErrors.CodeValidation, "account is required")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken satisfies the auth middleware. Only HMAC tokens from the
// configured issuer and audience, naming a well-formed account, pass.
func (s *Service) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	}
	if err != nil || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if _, err := domain.ParseAccountID(c.Subject); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not an account")
	}
	return &authmw.JWTClaims{Account: c.Subject, JTI: c.ID}, nil
}
