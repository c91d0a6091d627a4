// Package handler exposes the currency ledger: allowance grants for
// premium pulls, balance reads and the admin faucet.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"derisk/internal/authority"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/httputil"
	"derisk/pkg/requestcontext"
)

type Service interface {
	Mint(ctx context.Context, p authority.Principal, asset domain.AssetID, to domain.AccountID, amount uint64) error
	Approve(ctx context.Context, owner, spender domain.AccountID, asset domain.AssetID, amount uint64) error
	BalanceOf(ctx context.Context, asset domain.AssetID, account domain.AccountID) (uint64, error)
	Allowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID) (uint64, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/assets/approve", h.HandleApprove)
	r.Get("/v1/assets/{asset}/balances/{account}", h.HandleBalance)
	r.Get("/v1/assets/{asset}/allowances/{spender}", h.HandleAllowance)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/assets/mint", h.HandleMint)
}

// ApproveRequest is the body of POST /v1/assets/approve. The caller is the owner.
type ApproveRequest struct {
	AssetID string `json:"asset_id"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`

	asset   domain.AssetID
	spender domain.AccountID
	amount  uint64
}

func (r *ApproveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.asset, err = domain.ParseAssetID(r.AssetID); err != nil {
		return err
	}
	if r.spender, err = domain.ParseAccountID(r.Spender); err != nil {
		return err
	}
	// Zero revokes an allowance.
	r.amount, err = domain.ParseAmount("amount", r.Amount)
	return err
}

// MintRequest is the body of POST /admin/assets/mint.
type MintRequest struct {
	AssetID string `json:"asset_id"`
	To      string `json:"to"`
	Amount  string `json:"amount"`

	asset  domain.AssetID
	to     domain.AccountID
	amount uint64
}

func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.asset, err = domain.ParseAssetID(r.AssetID); err != nil {
		return err
	}
	if r.to, err = domain.ParseAccountID(r.To); err != nil {
		return err
	}
	r.amount, err = domain.ParseAmount("amount", r.Amount)
	return err
}

type BalanceResponse struct {
	AssetID string `json:"asset_id"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type AllowanceResponse struct {
	AssetID   string `json:"asset_id"`
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	owner := requestcontext.Account(ctx)
	if owner.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.service.Approve(ctx, owner, req.spender, req.asset, req.amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AllowanceResponse{
		AssetID:   req.asset.String(),
		Owner:     owner.String(),
		Spender:   req.spender.String(),
		Allowance: domain.FormatAmount(req.amount),
	})
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := domain.ParseAssetID(chi.URLParam(r, "asset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := domain.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.service.BalanceOf(r.Context(), asset, account)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		AssetID: asset.String(), Account: account.String(), Balance: domain.FormatAmount(balance),
	})
}

// HandleAllowance reports what spender may still pull from the caller.
func (h *Handler) HandleAllowance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asset, err := domain.ParseAssetID(chi.URLParam(r, "asset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	spender, err := domain.ParseAccountID(chi.URLParam(r, "spender"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner := requestcontext.Account(ctx)
	allowance, err := h.service.Allowance(ctx, asset, owner, spender)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AllowanceResponse{
		AssetID: asset.String(), Owner: owner.String(), Spender: spender.String(),
		Allowance: domain.FormatAmount(allowance),
	})
}

func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Mint(ctx, authority.As(requestcontext.Account(ctx)), req.asset, req.to, req.amount); err != nil {
		h.logger.WarnContext(ctx, "mint refused", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
