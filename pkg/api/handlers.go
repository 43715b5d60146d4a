package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/neuronote/pkg/catalog"
	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/manifest"
	"github.com/platinummonkey/neuronote/pkg/observability"
)

// PluginsResponse is the body of GET /plugins
type PluginsResponse struct {
	SortBy     manifest.SortKey         `json:"sort_by"`
	Total      int                      `json:"total"`
	Categories []manifest.CategoryGroup `json:"categories"`
}

// listPlugins handles GET /plugins
func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	sortBy, err := manifest.ParseSortKey(httputil.ParseQueryString(r, "sort_by", ""))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	if s.catalog == nil {
		httputil.WriteServiceUnavailable(w, "plugin catalog not configured")
		return
	}

	result, err := s.catalog.List(r.Context(), sortBy)
	switch {
	case errors.Is(err, manifest.ErrMissingRequiredField):
		httputil.WriteUnprocessable(w, err)
		return
	case errors.Is(err, manifest.ErrInvalidSortKey):
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, catalog.ErrNoSource):
		httputil.WriteServiceUnavailable(w, "plugin catalog not configured")
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("failed to list plugins")
		httputil.WriteServiceUnavailable(w, "plugin manifest unavailable")
		return
	}

	categories := result.Groups
	if categories == nil {
		categories = []manifest.CategoryGroup{}
	}

	httputil.WriteSuccess(w, PluginsResponse{
		SortBy:     sortBy,
		Total:      result.Total(),
		Categories: categories,
	})
}
