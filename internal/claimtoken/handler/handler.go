// Package handler exposes claim token ownership and transfers. Claim rights
// are transferable until claimed; the current owner is who gets paid.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/httputil"
	"derisk/pkg/requestcontext"
)

type Service interface {
	Transfer(ctx context.Context, from, to domain.AccountID, id domain.PolicyID) error
	OwnerOf(ctx context.Context, id domain.PolicyID) (domain.AccountID, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/claim-tokens/{id}", h.HandleOwner)
	r.Post("/v1/claim-tokens/{id}/transfer", h.HandleTransfer)
}

// TransferRequest is the body of POST /v1/claim-tokens/{id}/transfer.
type TransferRequest struct {
	To string `json:"to"`

	to domain.AccountID
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	r.to, err = domain.ParseAccountID(r.To)
	return err
}

type OwnerResponse struct {
	PolicyID string `json:"policy_id"`
	Owner    string `json:"owner"`
}

func (h *Handler) HandleOwner(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner, err := h.service.OwnerOf(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{PolicyID: id.String(), Owner: owner.String()})
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	from := requestcontext.Account(ctx)
	if from.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.service.Transfer(ctx, from, req.to, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{PolicyID: id.String(), Owner: req.to.String()})
}
