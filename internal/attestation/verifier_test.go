package attestation

//go:generate mockgen -source=verifier.go -destination=mocks/verifier_mock.go -package=mocks Verifier

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProgram() ProgramID {
	var p ProgramID
	p[0] = 0xab
	return p
}

func TestHTTPVerifier(t *testing.T) {
	digest := Digest(Journal{ScoreBasisPoints: 5000}.Encode())
	seal := []byte{1, 2, 3}

	newServer := func(t *testing.T, status int, body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/verify", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			var req verifyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "010203", req.Seal)
			assert.Equal(t, hex.EncodeToString(digest[:]), req.Digest)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	}

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"valid", http.StatusOK, `{"valid":true}`, false},
		{"explicit rejection", http.StatusOK, `{"valid":false,"reason":"bad seal"}`, true},
		{"server error", http.StatusInternalServerError, `{"valid":true}`, true},
		{"malformed body", http.StatusOK, `not json`, true},
		{"missing verdict", http.StatusOK, `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			defer srv.Close()
			err := NewHTTPVerifier(srv.URL+"/", WithHTTPClient(srv.Client())).Verify(context.Background(), seal, testProgram(), digest)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("unreachable verifier fails closed", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"valid":true}`)
		url := srv.URL
		srv.Close()
		err := NewHTTPVerifier(url).Verify(context.Background(), seal, testProgram(), digest)
		assert.Error(t, err)
	})
}

func TestEd25519Verifier(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	v := NewEd25519Verifier(pub)
	digest := Digest(Journal{ScoreBasisPoints: 1234}.Encode())

	seal := SignSeal(priv, testProgram(), digest)
	assert.NoError(t, v.Verify(context.Background(), seal, testProgram(), digest))

	var otherProgram ProgramID
	otherProgram[0] = 0xcd
	assert.Error(t, v.Verify(context.Background(), seal, otherProgram, digest), "seal is bound to the program")

	tampered := digest
	tampered[0] ^= 1
	assert.Error(t, v.Verify(context.Background(), seal, testProgram(), tampered), "seal is bound to the digest")
	assert.Error(t, v.Verify(context.Background(), seal[:10], testProgram(), digest))

	parsed, err := ParseEd25519PublicKey(hex.EncodeToString(pub))
	require.NoError(t, err)
	assert.Equal(t, pub, parsed)
	_, err = ParseEd25519PublicKey("abcd")
	assert.Error(t, err)
}
