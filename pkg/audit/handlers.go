package audit

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// TraceResponse is the body of GET /audit/{traceId}
type TraceResponse struct {
	TraceID string `json:"trace_id"`
	Trace   *Trace `json:"trace"`
}

// Handlers provides HTTP handlers for the trace API
type Handlers struct {
	store Store
}

// NewHandlers creates new audit handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{
		store: store,
	}
}

// RegisterRoutes registers trace routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/{traceId}", h.getTrace).Methods("GET")
}

// getTrace handles GET /audit/{traceId}
func (h *Handlers) getTrace(w http.ResponseWriter, r *http.Request) {
	traceID, ok := httputil.ParsePathStringOrError(w, r, "traceId")
	if !ok {
		return
	}

	trace, err := h.store.Get(r.Context(), traceID)
	switch {
	case errors.Is(err, ErrTraceNotFound):
		httputil.WriteNotFoundError(w, "Trace not found")
		return
	case errors.Is(err, ErrInvalidTraceID):
		httputil.WriteBadRequest(w, "invalid trace id")
		return
	case err != nil:
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("trace_id", traceID).
			Error("failed to load trace")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, TraceResponse{TraceID: traceID, Trace: trace})
}
