package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"derisk/internal/attestation"
	"derisk/internal/authority"
	"derisk/internal/registry/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/httputil"
	"derisk/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, p authority.Principal, id domain.SubjectID, initialScore uint8) (*models.Subject, error)
	UpdateManual(ctx context.Context, p authority.Principal, id domain.SubjectID, newScore uint8) (*models.Subject, error)
	BindProgram(ctx context.Context, p authority.Principal, id domain.SubjectID, program attestation.ProgramID) error
	UpdateWithAttestation(ctx context.Context, id domain.SubjectID, journal, seal []byte) (*models.Subject, error)
	GetSubject(ctx context.Context, id domain.SubjectID) (*models.Subject, error)
	History(ctx context.Context, id domain.SubjectID) ([]models.ScoreChange, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated public endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/subjects/{id}", h.HandleGetSubject)
	r.Get("/v1/subjects/{id}/history", h.HandleHistory)
	r.Post("/v1/subjects/{id}/attestations", h.HandleSubmitAttestation)
}

// RegisterAdmin mounts the admin endpoints. The router must already enforce
// the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/subjects", h.HandleRegisterSubject)
	r.Put("/admin/subjects/{id}/score", h.HandleUpdateScore)
	r.Put("/admin/subjects/{id}/program", h.HandleBindProgram)
}

func (h *Handler) HandleGetSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	subject, err := h.service.GetSubject(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubject(subject))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	changes, err := h.service.History(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(id.String(), changes))
}

// HandleSubmitAttestation handles POST /v1/subjects/{id}/attestations.
func (h *Handler) HandleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitAttestationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	subject, err := h.service.UpdateWithAttestation(ctx, id, req.journal, req.seal)
	if err != nil {
		h.logger.WarnContext(ctx, "attestation refused",
			"request_id", requestID,
			"subject_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "attestation accepted",
		"request_id", requestID,
		"subject_id", id,
		"score", subject.Score,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSubject(subject))
}

func (h *Handler) HandleRegisterSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[RegisterSubjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	subject, err := h.service.Register(ctx, principal(ctx), req.parsedSubject, req.parsedScore)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSubject(subject))
}

func (h *Handler) HandleUpdateScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateScoreRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	subject, err := h.service.UpdateManual(ctx, principal(ctx), id, req.parsedScore)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSubject(subject))
}

func (h *Handler) HandleBindProgram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BindProgramRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.BindProgram(ctx, principal(ctx), id, req.parsedProgram); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) subjectParam(w http.ResponseWriter, r *http.Request) (domain.SubjectID, bool) {
	id, err := domain.ParseSubjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

func principal(ctx context.Context) authority.Principal {
	return authority.As(requestcontext.Account(ctx))
}
