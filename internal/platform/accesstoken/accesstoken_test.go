package accesstoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "derisk/pkg/domain-errors"
)

var issuedAt = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newService(opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return issuedAt })}, opts...)
	return NewService("test-signing-key", "derisk", "derisk-api", opts...)
}

func TestIssueAndValidate(t *testing.T) {
	svc := newService()
	token, err := svc.Issue("0xbuyer", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0xbuyer", claims.Account)
	assert.NotEmpty(t, claims.JTI)

	_, err = svc.Issue("", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRejectedTokens(t *testing.T) {
	svc := newService()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("invalid-token-string")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.Issue("0xbuyer", -time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.EqualError(t, err, "token has expired")
	})

	t.Run("skew inside leeway", func(t *testing.T) {
		token, err := svc.Issue("0xbuyer", -time.Second)
		require.NoError(t, err)
		_, err = newService(WithLeeway(5 * time.Second)).ValidateToken(token)
		assert.NoError(t, err)
	})

	t.Run("other audience", func(t *testing.T) {
		other := NewService("test-signing-key", "derisk", "other", WithClock(func() time.Time { return issuedAt }))
		token, err := other.Issue("0xbuyer", time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("other key", func(t *testing.T) {
		token, err := NewService("another-key", "derisk", "derisk-api").Issue("0xbuyer", time.Hour)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject: "0xbuyer", Issuer: "derisk", Audience: jwt.ClaimStrings{"derisk-api"},
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("subject is not an account", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "has spaces", Issuer: "derisk", Audience: jwt.ClaimStrings{"derisk-api"},
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		}).SignedString([]byte("test-signing-key"))
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
