package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"derisk/internal/attestation"
	"derisk/internal/platform/accesstoken"
	"derisk/internal/platform/idempotency"
	"derisk/internal/platform/telemetry"
	"derisk/pkg/domain"
)

var osExit = os.Exit

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Print(err)
		osExit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("command required")
	}
	switch args[0] {
	case "gen-key":
		return genKey(args[1:], out)
	case "journal":
		if len(args) < 2 {
			usage(out)
			return errors.New("journal subcommand required")
		}
		switch args[1] {
		case "encode":
			return journalEncode(args[2:], out)
		case "decode":
			return journalDecode(args[2:], out)
		}
		usage(out)
		return fmt.Errorf("unknown journal subcommand: %s", args[1])
	case "sign":
		return sign(args[1:], out)
	case "submit":
		return submit(ctx, args[1:], out)
	case "score":
		return score(ctx, args[1:], out)
	case "token":
		return token(args[1:], out)
	default:
		usage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "deriskctl commands:")
	fmt.Fprintln(out, "  gen-key")
	fmt.Fprintln(out, "  journal encode --reserves snapshot.json | --score-bp 7000 --assets N --liabilities N [--timestamp unix]")
	fmt.Fprintln(out, "  journal decode --journal <hex>")
	fmt.Fprintln(out, "  sign --key <hex private key> --program <hex> --journal <hex>")
	fmt.Fprintln(out, "  submit --server URL --token JWT --subject ID --journal <hex> --seal <hex> [--idempotency-key K]")
	fmt.Fprintln(out, "  score --server URL --token JWT --subject ID")
	fmt.Fprintln(out, "  token --account ID [--key K] [--ttl 1h]")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func genKey(args []string, out io.Writer) error {
	if err := newFlagSet("gen-key").Parse(args); err != nil {
		return err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	return writeJSON(out, map[string]string{
		"public_key":  hex.EncodeToString(pub),
		"private_key": hex.EncodeToString(priv),
	})
}

// snapshot is a protocol reserve dump as produced by the chain fetcher.
type snapshot struct {
	ProtocolName string                `json:"protocol_name"`
	Timestamp    uint64                `json:"timestamp"`
	Reserves     []attestation.Reserve `json:"reserves"`
}

func journalEncode(args []string, out io.Writer) error {
	fs := newFlagSet("journal encode")
	reservesPath := fs.String("reserves", "", "reserve snapshot json")
	scoreBP := fs.Uint64("score-bp", 0, "score in basis points")
	assets := fs.String("assets", "0", "total assets, USD scaled by 1e8")
	liabilities := fs.String("liabilities", "0", "total liabilities, USD scaled by 1e8")
	timestamp := fs.Uint64("timestamp", 0, "snapshot unix time (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		journal attestation.Journal
		err     error
	)
	if *reservesPath != "" {
		raw, err := os.ReadFile(*reservesPath)
		if err != nil {
			return fmt.Errorf("read reserves: %w", err)
		}
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("decode reserves: %w", err)
		}
		ts := snap.Timestamp
		if *timestamp != 0 {
			ts = *timestamp
		}
		if journal, err = attestation.ComputeSafetyScore(snap.Reserves, orNow(ts)); err != nil {
			return err
		}
	} else {
		journal.ScoreBasisPoints = *scoreBP
		if journal.TotalAssets, err = attestation.ParseUint128(*assets); err != nil {
			return err
		}
		if journal.TotalLiabilities, err = attestation.ParseUint128(*liabilities); err != nil {
			return err
		}
		journal.Timestamp = orNow(*timestamp)
	}
	fmt.Fprintln(out, hex.EncodeToString(journal.Encode()))
	return nil
}

func orNow(ts uint64) uint64 {
	if ts != 0 {
		return ts
	}
	return uint64(time.Now().Unix())
}

type decodedJournal struct {
	ScoreBasisPoints    uint64              `json:"score_bp"`
	Score               uint8               `json:"score"`
	TotalAssets         attestation.Uint128 `json:"total_assets"`
	TotalLiabilities    attestation.Uint128 `json:"total_liabilities"`
	TotalAssetsUSD      string              `json:"total_assets_usd"`
	TotalLiabilitiesUSD string              `json:"total_liabilities_usd"`
	Timestamp           uint64              `json:"timestamp"`
	Time                time.Time           `json:"time"`
	Digest              string              `json:"digest"`
}

func journalDecode(args []string, out io.Writer) error {
	fs := newFlagSet("journal decode")
	raw := fs.String("journal", "", "hex journal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := attestation.DecodeHex("journal", *raw)
	if err != nil {
		return err
	}
	j, err := attestation.DecodeJournal(b)
	if err != nil {
		return err
	}
	digest := attestation.Digest(b)
	return writeJSON(out, decodedJournal{
		ScoreBasisPoints:    j.ScoreBasisPoints,
		Score:               j.Score(),
		TotalAssets:         j.TotalAssets,
		TotalLiabilities:    j.TotalLiabilities,
		TotalAssetsUSD:      j.TotalAssets.Decimal(8).StringFixed(2),
		TotalLiabilitiesUSD: j.TotalLiabilities.Decimal(8).StringFixed(2),
		Timestamp:           j.Timestamp,
		Time:                j.Time(),
		Digest:              hex.EncodeToString(digest[:]),
	})
}

// sign produces a development seal the Ed25519 verifier accepts.
func sign(args []string, out io.Writer) error {
	fs := newFlagSet("sign")
	keyHex := fs.String("key", "", "hex ed25519 private key")
	programHex := fs.String("program", "", "hex program id")
	journalHex := fs.String("journal", "", "hex journal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := hex.DecodeString(strings.TrimPrefix(*keyHex, "0x"))
	if err != nil || len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("key must be %d bytes of hex", ed25519.PrivateKeySize)
	}
	program, err := attestation.ParseProgramID(*programHex)
	if err != nil {
		return err
	}
	journal, err := attestation.DecodeHex("journal", *journalHex)
	if err != nil {
		return err
	}
	if _, err := attestation.DecodeJournal(journal); err != nil {
		return err
	}
	seal := attestation.SignSeal(ed25519.PrivateKey(key), program, attestation.Digest(journal))
	fmt.Fprintln(out, hex.EncodeToString(seal))
	return nil
}

// token issues a bearer token for account, signed with the server's key.
func token(args []string, out io.Writer) error {
	fs := newFlagSet("token")
	key := fs.String("key", os.Getenv("JWT_SIGNING_KEY"), "signing key (default $JWT_SIGNING_KEY)")
	account := fs.String("account", "", "account the bearer acts as")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("--key or JWT_SIGNING_KEY is required")
	}
	id, err := domain.ParseAccountID(*account)
	if err != nil {
		return err
	}
	signed, err := accesstoken.NewService(*key, accesstoken.Issuer, accesstoken.Audience).Issue(id, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, signed)
	return nil
}

type apiFlags struct {
	server  *string
	token   *string
	subject *string
}

func addAPIFlags(fs *flag.FlagSet) apiFlags {
	return apiFlags{
		server:  fs.String("server", envOr("DERISK_SERVER", "http://localhost:8080"), "derisk base url"),
		token:   fs.String("token", os.Getenv("DERISK_TOKEN"), "bearer token"),
		subject: fs.String("subject", "", "subject id"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// submit posts a journal and seal, the way the oracle host pushes a proof.
// Without an explicit key one is generated, so a retried submit is replayed
// rather than applied twice.
func submit(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("submit")
	api := addAPIFlags(fs)
	journal := fs.String("journal", "", "hex journal")
	seal := fs.String("seal", "", "hex seal")
	key := fs.String("idempotency-key", "", "idempotency key (default random)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *api.subject == "" || *journal == "" || *seal == "" {
		return errors.New("--subject, --journal and --seal are required")
	}
	if *key == "" {
		*key = uuid.NewString()
	}
	body, err := json.Marshal(map[string]string{"journal": *journal, "seal": *seal})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(*api.server, "/")+"/v1/subjects/"+*api.subject+"/attestations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotency.HeaderKey, *key)
	return do(req, *api.token, out)
}

func score(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("score")
	api := addAPIFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *api.subject == "" {
		return errors.New("--subject is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(*api.server, "/")+"/v1/subjects/"+*api.subject, nil)
	if err != nil {
		return err
	}
	return do(req, *api.token, out)
}

var httpClient = telemetry.InstrumentClient(&http.Client{Timeout: 30 * time.Second})

func do(req *http.Request, token string, out io.Writer) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	_, err = out.Write(body)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
