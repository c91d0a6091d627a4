package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"derisk/internal/authority"
	"derisk/internal/vault/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/httputil"
	"derisk/pkg/requestcontext"
)

// Service defines the vault operations exposed over HTTP.
type Service interface {
	Snapshot(ctx context.Context) (models.Ledger, error)
	DepositPremium(ctx context.Context, amount uint64) (uint64, error)
	EmergencyWithdraw(ctx context.Context, p authority.Principal, asset domain.AssetID, recipient domain.AccountID, amount uint64) error
	SetEngine(ctx context.Context, p authority.Principal, engine domain.AccountID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/vault", h.HandleSnapshot)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/vault/deposit", h.HandleDeposit)
	r.Post("/admin/vault/emergency-withdraw", h.HandleEmergencyWithdraw)
	r.Put("/admin/vault/engine", h.HandleSetEngine)
}

// LedgerResponse renders amounts as decimal strings so clients never lose
// precision above 2^53.
type LedgerResponse struct {
	TotalAssets string `json:"total_assets"`
	TotalShares string `json:"total_shares"`
	SelfShares  string `json:"self_shares"`
}

func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LedgerResponse{
		TotalAssets: domain.FormatAmount(l.TotalAssets),
		TotalShares: domain.FormatAmount(l.TotalShares),
		SelfShares:  domain.FormatAmount(l.SelfShares),
	})
}

// DepositRequest is the body of POST /admin/vault/deposit. It accounts
// capital the operator already moved into the vault account.
type DepositRequest struct {
	Amount string `json:"amount"`

	amount uint64
}

func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	r.amount, err = domain.ParseAmount("amount", r.Amount)
	return err
}

type DepositResponse struct {
	Shares string `json:"shares"`
}

func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	shares, err := h.service.DepositPremium(ctx, req.amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DepositResponse{Shares: domain.FormatAmount(shares)})
}

// EmergencyWithdrawRequest is the body of POST /admin/vault/emergency-withdraw.
type EmergencyWithdrawRequest struct {
	AssetID   string `json:"asset_id"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`

	asset     domain.AssetID
	recipient domain.AccountID
	amount    uint64
}

func (r *EmergencyWithdrawRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.asset, err = domain.ParseAssetID(r.AssetID); err != nil {
		return err
	}
	if r.recipient, err = domain.ParseAccountID(r.Recipient); err != nil {
		return err
	}
	if r.amount, err = domain.ParseAmount("amount", r.Amount); err != nil {
		return err
	}
	return nil
}

func (h *Handler) HandleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[EmergencyWithdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p := authority.As(requestcontext.Account(ctx))
	if err := h.service.EmergencyWithdraw(ctx, p, req.asset, req.recipient, req.amount); err != nil {
		h.logger.WarnContext(ctx, "emergency withdrawal refused",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetEngineRequest is the body of PUT /admin/vault/engine.
type SetEngineRequest struct {
	Engine string `json:"engine"`

	engine domain.AccountID
}

func (r *SetEngineRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	r.engine, err = domain.ParseAccountID(r.Engine)
	return err
}

func (h *Handler) HandleSetEngine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SetEngineRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetEngine(ctx, authority.As(requestcontext.Account(ctx)), req.engine); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
