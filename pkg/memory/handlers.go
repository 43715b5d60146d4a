package memory

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// SearchRequest is the body of POST /memory/search
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchResponse is the reply of POST /memory/search
type SearchResponse struct {
	Results []Result `json:"results"`
}

// Handlers provides HTTP handlers for memory search
type Handlers struct {
	store Store
}

// NewHandlers creates new memory handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers memory routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/memory/search", h.search).Methods("POST")
}

// search handles POST /memory/search
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, strings.TrimSpace(req.Query), "query") {
		return
	}
	if req.Limit < 0 {
		httputil.WriteBadRequest(w, "limit must not be negative")
		return
	}

	results, err := h.store.Search(r.Context(), req.Query, req.Limit)
	switch {
	case errors.Is(err, ErrEmptyQuery):
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("memory search failed")
		httputil.WriteInternalError(w, err)
		return
	}

	if results == nil {
		results = []Result{}
	}
	httputil.WriteSuccess(w, SearchResponse{Results: results})
}
