package attestation

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPVerifier delegates proof checking to an external verification service.
// It fails closed: transport errors, non-2xx responses, malformed bodies and
// an explicit "valid": false are all rejections.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

type HTTPVerifierOption func(*HTTPVerifier)

// WithHTTPClient overrides the traced default client.
func WithHTTPClient(c *http.Client) HTTPVerifierOption {
	return func(v *HTTPVerifier) {
		v.client = c
	}
}

func NewHTTPVerifier(baseURL string, opts ...HTTPVerifierOption) *HTTPVerifier {
	v := &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verifyRequest struct {
	Seal      string `json:"seal"`
	ProgramID string `json:"program_id"`
	Digest    string `json:"digest"`
}

type verifyResponse struct {
	Valid  *bool  `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// maxVerifyResponse bounds how much of the verifier's reply is read.
const maxVerifyResponse = 64 << 10

func (v *HTTPVerifier) Verify(ctx context.Context, seal []byte, program ProgramID, digest [32]byte) error {
	body, err := json.Marshal(verifyRequest{
		Seal:      hex.EncodeToString(seal),
		ProgramID: hex.EncodeToString(program[:]),
		Digest:    hex.EncodeToString(digest[:]),
	})
	if err != nil {
		return fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("verifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxVerifyResponse))
	if err != nil {
		return fmt.Errorf("read verifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}
	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("malformed verifier response: %w", err)
	}
	if out.Valid == nil {
		return fmt.Errorf("malformed verifier response: missing valid")
	}
	if !*out.Valid {
		if out.Reason == "" {
			out.Reason = "seal rejected"
		}
		return fmt.Errorf("verifier: %s", out.Reason)
	}
	return nil
}
