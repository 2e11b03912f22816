package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nao1215/quietfeed/internal/blocker"
	"github.com/nao1215/quietfeed/internal/catalog"
	"github.com/nao1215/quietfeed/internal/report"
	"github.com/nao1215/quietfeed/internal/settings"
	"github.com/nao1215/quietfeed/internal/webview"
)

// maxBodyBytes caps request bodies; the largest valid body is a short list
// of feature IDs or one URL.
const maxBodyBytes = 64 << 10

// FeaturesResponse is the body of the features endpoints.
type FeaturesResponse struct {
	Site    string   `json:"site"`
	Enabled []string `json:"enabled"`
}

// ToggleResponse is the body of the toggle endpoint.
type ToggleResponse struct {
	Site    string `json:"site"`
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

// PageLoadedRequest is the body of POST /v1/page-loaded.
type PageLoadedRequest struct {
	URL string `json:"url"`
}

// PageLoadedResponse tells the host which script to execute.
type PageLoadedResponse struct {
	Site     string   `json:"site"`
	Features []string `json:"features"`
	Digest   string   `json:"digest"`
	Script   string   `json:"script"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report.NewSiteStatuses(s.settings.Enabled))
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.NewSiteStatus(site, s.settings.Enabled(site.ID)))
}

// handleScript returns the generated script. The features query parameter
// replaces the stored selection for this request only.
func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}

	enabled := s.settings.Enabled(site.ID)
	if values, overridden := r.URL.Query()["features"]; overridden {
		enabled = splitFeatures(values)
		for _, id := range enabled {
			if !catalog.HasFeature(site.ID, id) {
				writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s/%s", settings.ErrUnknownFeature, site.ID, id))
				return
			}
		}
	}

	script := s.generator.Generate(site.ID, enabled)
	if script == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	etag := `"` + blocker.Digest(script) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, script)
}

func (s *Server) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	s.writeFeatures(w, site.ID)
}

// handlePutFeatures replaces the enabled set with a JSON array of IDs.
func (s *Server) handlePutFeatures(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}

	var ids []string
	if err := decodeJSON(r, &ids); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.settings.Replace(r.Context(), site.ID, ids); err != nil {
		s.writeSettingsError(w, err)
		return
	}
	s.writeFeatures(w, site.ID)
}

func (s *Server) handleResetFeatures(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	if err := s.settings.Reset(r.Context(), site.ID); err != nil {
		s.writeSettingsError(w, err)
		return
	}
	s.writeFeatures(w, site.ID)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	feature := chi.URLParam(r, "feature")

	on, err := s.settings.Toggle(r.Context(), site.ID, feature)
	if err != nil {
		s.writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{Site: site.ID, Feature: feature, Enabled: on})
}

// handlePageLoaded runs the web-view bridge for a URL and returns the
// script instead of executing it. The host executes the script itself.
func (s *Server) handlePageLoaded(w http.ResponseWriter, r *http.Request) {
	var req PageLoadedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	var script string
	capture := webview.ExecutorFunc(func(_ context.Context, js string) error {
		script = js
		return nil
	})

	opts := []webview.BridgeOption{
		webview.WithGenerator(s.generator),
		webview.WithLogger(s.logger),
	}
	if s.recorder != nil {
		opts = append(opts, webview.WithRecorder(s.recorder))
	}

	out, err := webview.NewBridge(s.settings, opts...).OnPageLoaded(r.Context(), req.URL, capture)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !out.Executed {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, PageLoadedResponse{
		Site:     out.Site,
		Features: out.Features,
		Digest:   out.Digest,
		Script:   script,
	})
}

// site resolves the {site} URL parameter and writes a 404 when unknown.
func (s *Server) site(w http.ResponseWriter, r *http.Request) (catalog.Site, bool) {
	id := chi.URLParam(r, "site")
	site, ok := catalog.LookupSite(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", settings.ErrUnknownSite, id))
		return catalog.Site{}, false
	}
	return site, true
}

func (s *Server) writeFeatures(w http.ResponseWriter, siteID string) {
	enabled := s.settings.Enabled(siteID)
	if enabled == nil {
		enabled = []string{}
	}
	writeJSON(w, http.StatusOK, FeaturesResponse{Site: siteID, Enabled: enabled})
}

// writeSettingsError maps settings errors to status codes.
func (s *Server) writeSettingsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrUnknownSite), errors.Is(err, settings.ErrUnknownFeature):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("settings update failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// splitFeatures accepts both repeated and comma-separated values.
func splitFeatures(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
