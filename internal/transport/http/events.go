package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/audit"
	"derisk/pkg/platform/httputil"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type eventResponse struct {
	ID        string              `json:"id"`
	Category  audit.EventCategory `json:"category"`
	Timestamp time.Time           `json:"timestamp"`
	Action    string              `json:"action"`
	Subject   string              `json:"subject_id,omitempty"`
	PolicyID  string              `json:"policy_id,omitempty"`
	Account   string              `json:"account,omitempty"`
	Amount    string              `json:"amount,omitempty"`
	Score     *uint8              `json:"score,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

// eventsHandler lists the settlement trail, newest last: every event for
// ?subject_id=, otherwise the latest ?limit= events.
func eventsHandler(store audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		var (
			events []audit.Event
			err    error
		)
		if raw := q.Get("subject_id"); raw != "" {
			subject, perr := domain.ParseSubjectID(raw)
			if perr != nil {
				httputil.WriteError(w, perr)
				return
			}
			events, err = store.ListBySubject(ctx, subject.String())
		} else {
			limit := defaultEventLimit
			if raw := q.Get("limit"); raw != "" {
				n, perr := strconv.Atoi(raw)
				if perr != nil || n < 1 || n > maxEventLimit {
					httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxEventLimit))
					return
				}
				limit = n
			}
			events, err = store.ListRecent(ctx, limit)
		}
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read events"))
			return
		}

		resp := eventsResponse{Events: make([]eventResponse, 0, len(events))}
		for _, e := range events {
			out := eventResponse{
				ID:        e.ID,
				Category:  e.Category,
				Timestamp: e.Timestamp,
				Action:    e.Action,
				Subject:   e.Subject,
				Account:   e.Account,
				Amount:    e.Amount,
				Score:     e.Score,
				Reason:    e.Reason,
				RequestID: e.RequestID,
			}
			if e.PolicyID != 0 {
				out.PolicyID = domain.PolicyID(e.PolicyID).String()
			}
			resp.Events = append(resp.Events, out)
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
