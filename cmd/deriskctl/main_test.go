package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derisk/internal/attestation"
	"derisk/internal/platform/accesstoken"
	"derisk/internal/platform/idempotency"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return strings.TrimSpace(out.String()), err
}

func TestCommandRouting(t *testing.T) {
	out, err := runCLI(t)
	require.Error(t, err)
	assert.Contains(t, out, "deriskctl commands")

	out, err = runCLI(t, "frobnicate")
	require.Error(t, err)
	assert.Contains(t, out, "deriskctl commands")

	_, err = runCLI(t, "journal", "reverse")
	assert.Error(t, err)
}

func TestJournalRoundTrip(t *testing.T) {
	encoded, err := runCLI(t, "journal", "encode",
		"--score-bp", "7550",
		"--assets", "340282366920938463463374607431768211455",
		"--liabilities", "250000000000",
		"--timestamp", "1767225600",
	)
	require.NoError(t, err)
	raw, err := hex.DecodeString(encoded)
	require.NoError(t, err)
	require.Len(t, raw, attestation.JournalSize)

	out, err := runCLI(t, "journal", "decode", "--journal", "0x"+encoded)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.EqualValues(t, 7550, decoded["score_bp"])
	assert.EqualValues(t, 75, decoded["score"])
	assert.Equal(t, "340282366920938463463374607431768211455", decoded["total_assets"])
	assert.Equal(t, "2500.00", decoded["total_liabilities_usd"])
	assert.EqualValues(t, 1767225600, decoded["timestamp"])

	_, err = runCLI(t, "journal", "decode", "--journal", encoded[:10])
	assert.Error(t, err, "short journals are rejected")
}

func TestJournalFromReserves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	snapshot := `{
		"protocol_name": "aave-v3",
		"timestamp": 1767225600,
		"reserves": [{
			"token_address": "0xusdc",
			"total_atoken": "1000000000",
			"total_stable_debt": "0",
			"total_variable_debt": "250000000",
			"price_usd": "100000000",
			"decimals": 6
		}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))

	encoded, err := runCLI(t, "journal", "encode", "--reserves", path)
	require.NoError(t, err)
	raw, err := hex.DecodeString(encoded)
	require.NoError(t, err)
	j, err := attestation.DecodeJournal(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7500), j.ScoreBasisPoints)
	assert.Equal(t, uint64(1767225600), j.Timestamp)
}

func TestSignProducesAcceptedSeal(t *testing.T) {
	keys, err := runCLI(t, "gen-key")
	require.NoError(t, err)
	var pair map[string]string
	require.NoError(t, json.Unmarshal([]byte(keys), &pair))

	journal, err := runCLI(t, "journal", "encode", "--score-bp", "9000", "--timestamp", "1767225600")
	require.NoError(t, err)
	program := "0x" + strings.Repeat("ab", 32)

	sealHex, err := runCLI(t, "sign", "--key", pair["private_key"], "--program", program, "--journal", journal)
	require.NoError(t, err)

	pub, err := attestation.ParseEd25519PublicKey(pair["public_key"])
	require.NoError(t, err)
	programID, err := attestation.ParseProgramID(program)
	require.NoError(t, err)
	seal, err := hex.DecodeString(sealHex)
	require.NoError(t, err)
	rawJournal, err := hex.DecodeString(journal)
	require.NoError(t, err)

	v := attestation.NewEd25519Verifier(pub)
	assert.NoError(t, v.Verify(context.Background(), seal, programID, attestation.Digest(rawJournal)))
}

func TestTokenIsAcceptedByServer(t *testing.T) {
	signed, err := runCLI(t, "token", "--key", "shared-key", "--account", "0xAlice", "--ttl", "10m")
	require.NoError(t, err)

	claims, err := accesstoken.NewService("shared-key", accesstoken.Issuer, accesstoken.Audience).ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "0xalice", claims.Account)

	t.Setenv("JWT_SIGNING_KEY", "")
	_, err = runCLI(t, "token", "--account", "0xalice")
	assert.Error(t, err, "a signing key is required")
}

func TestSubmit(t *testing.T) {
	var got struct {
		path, auth, key string
		body            map[string]string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.key = r.Header.Get(idempotency.HeaderKey)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		if got.body["seal"] == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"proof_rejected"}`))
			return
		}
		_, _ = w.Write([]byte(`{"subject_id":"aave-v3","score":75}`))
	}))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "submit", "--server", srv.URL, "--token", "tkn",
		"--subject", "aave-v3", "--journal", "00", "--seal", "ff", "--idempotency-key", "k-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"score":75`)
	assert.Equal(t, "/v1/subjects/aave-v3/attestations", got.path)
	assert.Equal(t, "Bearer tkn", got.auth)
	assert.Equal(t, "k-1", got.key)
	assert.Equal(t, map[string]string{"journal": "00", "seal": "ff"}, got.body)

	_, err = runCLI(t, "submit", "--server", srv.URL, "--subject", "aave-v3", "--journal", "00", "--seal", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proof_rejected")
	assert.NotEmpty(t, got.key, "a key is generated when none is given")

	_, err = runCLI(t, "submit", "--server", srv.URL)
	assert.Error(t, err)
}
