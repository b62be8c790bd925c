// Package api: runtime status endpoint.
package api

import (
	"net/http"

	"github.com/seenimoa/secfacts/internal/config"
	"github.com/seenimoa/secfacts/internal/fsds"
)

// StatusResponse is the JSON envelope returned by GET /api/v1/status.
// The contact email is only ever reported masked.
type StatusResponse struct {
	Version       string                  `json:"version"`
	Identity      []config.IdentityStatus `json:"identity"`
	ConfigError   string                  `json:"config_error,omitempty"`
	FailurePolicy string                  `json:"failure_policy"`
	DatasetsURL   string                  `json:"datasets_url"`
	MinInterval   string                  `json:"min_interval"`
	CacheDir      string                  `json:"cache_dir,omitempty"`
	TaxonomyTags  int                     `json:"taxonomy_tags"`
	Fetcher       fsds.FetcherStats       `json:"fetcher"`
}

// handleStatus reports the SEC identity in use, the effective pipeline
// settings and dataset fetch counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:       Version,
		Identity:      config.CheckIdentity(s.cfg),
		FailurePolicy: s.cfg.Pipeline.FailurePolicy,
		DatasetsURL:   s.cfg.SEC.DatasetsURL,
		MinInterval:   s.stack.HTTP.MinInterval().String(),
		CacheDir:      s.cfg.Cache.Dir,
		TaxonomyTags:  s.stack.Taxonomy.Len(),
		Fetcher:       s.stack.Fetcher.Stats(),
	}
	if err := s.cfg.Validate(); err != nil {
		resp.ConfigError = err.Error()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}
