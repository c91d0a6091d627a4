package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"derisk/internal/attestation"
	"derisk/internal/platform/config"
	"derisk/pkg/domain"
)

const adminToken = "ops-token"

// SettlementFlowSuite drives the assembled in-memory process over HTTP.
type SettlementFlowSuite struct {
	suite.Suite
	app     *app
	cfg     config.Server
	now     time.Time
	signer  ed25519.PrivateKey
	program attestation.ProgramID
}

func TestSettlementFlowSuite(t *testing.T) {
	suite.Run(t, new(SettlementFlowSuite))
}

func (s *SettlementFlowSuite) SetupTest() {
	s.setup(nil)
}

// setup assembles the process in memory unless configure points it at
// external backends.
func (s *SettlementFlowSuite) setup(configure func(*config.Server)) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.signer = priv
	s.program[0] = 0x42

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	s.Require().NoError(err)

	cfg := config.Server{
		JWTSigningKey:  "test-signing-key",
		AdminTokenHash: string(hash),
		TxTimeout:      time.Second,
		Ledger: config.LedgerConfig{
			MinPremium:    1,
			PoolAsset:     "usdc",
			VaultAccount:  "vault",
			EngineAccount: "policy-engine",
			AdminAccount:  "operator",
		},
		Verifier:  config.VerifierConfig{Ed25519Key: hex.EncodeToString(pub)},
		Telemetry: config.TelemetryConfig{ServiceName: "derisk", SampleRatio: 1},
	}
	if configure != nil {
		configure(&cfg)
	}
	s.cfg = cfg
	s.now = time.Now()
	s.app, err = buildApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		withClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	s.T().Cleanup(s.app.close)
}

func (s *SettlementFlowSuite) call(method, path, account string, body any) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if account == "" {
		req.Header.Set("X-Admin-Token", adminToken)
	} else {
		token, err := s.app.tokens.Issue(domain.AccountID(account), time.Hour)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.app.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (s *SettlementFlowSuite) admin(method, path string, body any) map[string]any {
	code, out := s.call(method, path, "", body)
	s.Require().Less(code, 300, "%s %s: %v", method, path, out)
	return out
}

// fund seeds pool capital and a buyer with an engine allowance.
func (s *SettlementFlowSuite) fund() {
	s.admin(http.MethodPost, "/admin/assets/mint", map[string]string{"asset_id": "usdc", "to": "vault", "amount": "10000"})
	s.admin(http.MethodPost, "/admin/vault/deposit", map[string]string{"amount": "10000"})
	s.admin(http.MethodPost, "/admin/subjects", map[string]any{"subject_id": "aave-v3", "score": 95})
	s.admin(http.MethodPut, "/admin/subjects/aave-v3/program", map[string]string{"program_id": s.program.String()})
	s.admin(http.MethodPost, "/admin/assets/mint", map[string]string{"asset_id": "usdc", "to": "alice", "amount": "1000"})

	code, quote := s.call(http.MethodGet, "/v1/quote?subject_id=aave-v3&strike_score=80&duration_days=10&payout_amount=1000", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("20", quote["premium"])
	s.Equal("policy-engine", quote["spender"])

	code, _ = s.call(http.MethodPost, "/v1/assets/approve", "alice", map[string]string{
		"asset_id": "usdc", "spender": "policy-engine", "amount": "18446744073709551615",
	})
	s.Require().Equal(http.StatusOK, code)
}

func (s *SettlementFlowSuite) attest(scoreBasisPoints uint64) (int, map[string]any) {
	journal := attestation.Journal{
		ScoreBasisPoints: scoreBasisPoints,
		TotalAssets:      attestation.Uint128FromUint64(700_000_000),
		TotalLiabilities: attestation.Uint128FromUint64(1_000_000_000),
		Timestamp:        uint64(time.Now().Unix()),
	}.Encode()
	seal := attestation.SignSeal(s.signer, s.program, attestation.Digest(journal))
	return s.call(http.MethodPost, "/v1/subjects/aave-v3/attestations", "oracle", map[string]string{
		"journal": hex.EncodeToString(journal),
		"seal":    hex.EncodeToString(seal),
	})
}

func (s *SettlementFlowSuite) balance(account string) string {
	code, out := s.call(http.MethodGet, "/v1/assets/usdc/balances/"+account, account, nil)
	s.Require().Equal(http.StatusOK, code)
	return out["balance"].(string)
}

func (s *SettlementFlowSuite) TestBreachedPolicyPaysOutOnceOverHTTP() {
	s.fund()

	code, policy := s.call(http.MethodPost, "/v1/policies", "alice", map[string]any{
		"subject_id": "aave-v3", "strike_score": 80, "duration_days": 10, "payout_amount": "1000",
	})
	s.Require().Equal(http.StatusCreated, code, policy)
	s.Equal("1", policy["policy_id"])
	s.Equal("active", policy["status"])
	s.Equal("980", s.balance("alice"))

	code, out := s.call(http.MethodPost, "/v1/policies/1/claim", "alice", nil)
	s.Equal(http.StatusConflict, code)
	s.Contains(out["error_description"], "strike not breached")

	code, out = s.attest(7_000)
	s.Require().Equal(http.StatusOK, code, out)
	s.EqualValues(70, out["score"])

	code, out = s.call(http.MethodGet, "/v1/policies/1/claimable", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal(true, out["claimable"])

	code, out = s.call(http.MethodPost, "/v1/policies/1/claim", "alice", nil)
	s.Require().Equal(http.StatusOK, code, out)
	s.Equal("1000", out["paid"])
	s.Equal("1980", s.balance("alice"))

	code, out = s.call(http.MethodPost, "/v1/policies/1/claim", "alice", nil)
	s.Equal(http.StatusConflict, code)
	s.Contains(out["error_description"], "already claimed")

	code, vault := s.call(http.MethodGet, "/v1/vault", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("9020", vault["total_assets"])

	code, exposure := s.call(http.MethodGet, "/v1/subjects/aave-v3/exposure", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("0", exposure["total_insured"])

	trail := s.admin(http.MethodGet, "/admin/events?subject_id=aave-v3", nil)
	var actions []string
	for _, e := range trail["events"].([]any) {
		actions = append(actions, e.(map[string]any)["action"].(string))
	}
	s.Subset(actions, []string{"policy_issued", "score_attested", "policy_claimed"})
}

func (s *SettlementFlowSuite) TestForgedAttestationIsRejected() {
	s.fund()
	_, other, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.signer = other

	code, _ := s.attest(1_000)
	s.Equal(http.StatusUnprocessableEntity, code)

	code, subject := s.call(http.MethodGet, "/v1/subjects/aave-v3", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.EqualValues(95, subject["score"])
}

func (s *SettlementFlowSuite) TestTransferredClaimRightOverHTTP() {
	s.fund()
	code, _ := s.call(http.MethodPost, "/v1/policies", "alice", map[string]any{
		"subject_id": "aave-v3", "strike_score": 80, "duration_days": 10, "payout_amount": "500",
	})
	s.Require().Equal(http.StatusCreated, code)

	code, owner := s.call(http.MethodPost, "/v1/claim-tokens/1/transfer", "alice", map[string]string{"to": "bob"})
	s.Require().Equal(http.StatusOK, code)
	s.Equal("bob", owner["owner"])
	s.admin(http.MethodPut, "/admin/subjects/aave-v3/score", map[string]any{"score": 10})

	code, _ = s.call(http.MethodPost, "/v1/policies/1/claim", "alice", nil)
	s.Equal(http.StatusForbidden, code)

	code, out := s.call(http.MethodPost, "/v1/policies/1/claim", "bob", nil)
	s.Require().Equal(http.StatusOK, code, out)
	s.Equal("500", s.balance("bob"))
}

func (s *SettlementFlowSuite) TestExpiredPolicyOverHTTP() {
	s.fund()
	code, _ := s.call(http.MethodPost, "/v1/policies", "alice", map[string]any{
		"subject_id": "aave-v3", "strike_score": 80, "duration_days": 10, "payout_amount": "1000",
	})
	s.Require().Equal(http.StatusCreated, code)
	s.admin(http.MethodPut, "/admin/subjects/aave-v3/score", map[string]any{"score": 10})

	s.now = s.now.Add(10 * 24 * time.Hour)
	code, out := s.call(http.MethodGet, "/v1/policies/1/claimable", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal(false, out["claimable"])
	s.Equal("expired", out["reason"])

	code, out = s.call(http.MethodPost, "/v1/policies/1/claim", "alice", nil)
	s.Equal(http.StatusConflict, code)
	s.Contains(out["error_description"], "expired")

	code, policy := s.call(http.MethodGet, "/v1/policies/1", "alice", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("expired", policy["status"])
}

func (s *SettlementFlowSuite) TestAdminSurfaceRequiresToken() {
	code, _ := s.call(http.MethodPost, "/admin/subjects", "alice", map[string]any{"subject_id": "aave-v3", "score": 95})
	s.Equal(http.StatusUnauthorized, code)

	code, out := s.call(http.MethodGet, "/healthz", "alice", nil)
	s.Equal(http.StatusOK, code)
	s.Equal("ok", out["status"])
}

func TestSelectVerifier(t *testing.T) {
	v, err := selectVerifier(config.VerifierConfig{})
	if err != nil || v != nil {
		t.Fatalf("no verifier expected without configuration, got %v, %v", v, err)
	}
	if _, err := selectVerifier(config.VerifierConfig{Ed25519Key: "zz"}); err == nil {
		t.Fatal("malformed key must be rejected")
	}
	if v, _ := selectVerifier(config.VerifierConfig{URL: "http://verifier"}); v == nil {
		t.Fatal("url selects the http verifier")
	}
}
