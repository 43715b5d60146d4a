package query

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// Handlers provides HTTP handlers for query submission
type Handlers struct {
	service    *Service
	middleware []func(http.Handler) http.Handler
}

// NewHandlers creates new query handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// Use adds middleware that wraps only the query routes
func (h *Handlers) Use(mw ...func(http.Handler) http.Handler) *Handlers {
	h.middleware = append(h.middleware, mw...)
	return h
}

// RegisterRoutes registers query routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/query", httputil.Chain(h.middleware...)(http.HandlerFunc(h.submit))).Methods("POST")
}

// submit handles POST /query
func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.Submit(observability.WithUserID(r.Context(), req.UserID), req)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, ErrBackendUnavailable):
		observability.FromContext(r.Context()).WithError(err).Warn("query backend failed")
		httputil.WriteBadGateway(w, "query backend unavailable")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("query failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, resp)
}
