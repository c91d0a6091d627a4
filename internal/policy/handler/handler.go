package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"derisk/internal/policy/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/httputil"
	"derisk/pkg/requestcontext"
)

// Service defines the policy engine operations exposed over HTTP.
type Service interface {
	Account() domain.AccountID
	QuotePremium(terms models.Terms) (uint64, error)
	BuyPolicy(ctx context.Context, buyer domain.AccountID, terms models.Terms) (*models.Policy, error)
	ClaimPayout(ctx context.Context, caller domain.AccountID, id domain.PolicyID) error
	IsClaimable(ctx context.Context, id domain.PolicyID) (bool, models.Reason, error)
	GetPolicy(ctx context.Context, id domain.PolicyID) (*models.Policy, error)
	Status(ctx context.Context, p *models.Policy) models.Status
	TotalInsured(ctx context.Context, subject domain.SubjectID) (uint64, error)
	ListByHolder(ctx context.Context, account domain.AccountID) ([]*models.Policy, error)
	ListBySubject(ctx context.Context, subject domain.SubjectID) ([]*models.Policy, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the buyer and claimant routes. They expect the caller's
// account in the request context.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/quote", h.HandleQuote)
	r.Post("/v1/policies", h.HandleBuy)
	r.Get("/v1/policies", h.HandleList)
	r.Get("/v1/policies/{id}", h.HandleGet)
	r.Get("/v1/policies/{id}/claimable", h.HandleClaimable)
	r.Post("/v1/policies/{id}/claim", h.HandleClaim)
	r.Get("/v1/subjects/{id}/exposure", h.HandleExposure)
}

func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	terms, err := quoteFromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	premium, err := h.service.QuotePremium(terms)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, QuoteResponse{
		Premium: domain.FormatAmount(premium),
		Spender: h.service.Account().String(),
	})
}

func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[BuyPolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	buyer := requestcontext.Account(ctx)
	p, err := h.service.BuyPolicy(ctx, buyer, req.terms)
	if err != nil {
		h.logger.InfoContext(ctx, "policy purchase refused",
			"request_id", requestID,
			"subject_id", req.terms.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromPolicy(p, h.service.Status(ctx, p)))
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ClaimPayout(ctx, requestcontext.Account(ctx), id); err != nil {
		h.logger.InfoContext(ctx, "claim refused",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPolicy(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ClaimResponse{
		PolicyID: id.String(),
		Paid:     domain.FormatAmount(p.PayoutAmount),
		Status:   string(models.StatusClaimed),
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPolicy(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPolicy(p, h.service.Status(ctx, p)))
}

func (h *Handler) HandleClaimable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParsePolicyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ok, reason, err := h.service.IsClaimable(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ClaimableResponse{PolicyID: id.String(), Claimable: ok, Reason: reason})
}

// HandleList lists by ?holder= (current claim token owner) or ?subject_id=.
// Without either it lists the caller's own policies.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	var (
		policies []*models.Policy
		err      error
	)
	switch {
	case q.Get("subject_id") != "":
		var subject domain.SubjectID
		if subject, err = domain.ParseSubjectID(q.Get("subject_id")); err == nil {
			policies, err = h.service.ListBySubject(ctx, subject)
		}
	case q.Get("holder") != "":
		var holder domain.AccountID
		if holder, err = domain.ParseAccountID(q.Get("holder")); err == nil {
			policies, err = h.service.ListByHolder(ctx, holder)
		}
	default:
		caller := requestcontext.Account(ctx)
		if caller.IsZero() {
			err = dErrors.New(dErrors.CodeValidation, "holder or subject_id is required")
		} else {
			policies, err = h.service.ListByHolder(ctx, caller)
		}
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := PolicyListResponse{Policies: make([]*PolicyResponse, 0, len(policies))}
	for _, p := range policies {
		resp.Policies = append(resp.Policies, FromPolicy(p, h.service.Status(ctx, p)))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleExposure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := domain.ParseSubjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	total, err := h.service.TotalInsured(ctx, subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExposureResponse{
		SubjectID:    subject.String(),
		TotalInsured: domain.FormatAmount(total),
	})
}
