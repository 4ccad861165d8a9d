// Package api exposes the HTTP interface of the crawl service: crawl
// triggering, resource status, relevance queries, and operational probes.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/metrics"
	"github.com/kevinalyk/campaign-portal/internal/queue"
	"github.com/kevinalyk/campaign-portal/internal/retrieval"
)

// Server wires HTTP handlers to the producer, stores, and retrieval
// engine.
type Server struct {
	router    chi.Router
	producer  *queue.Producer
	resources crawler.ResourceStore
	siteMaps  crawler.SiteMapStore
	engine    *retrieval.Engine
	logger    *zap.Logger
}

// Options carries optional server settings.
type Options struct {
	AuthEnabled bool
	APIKey      string
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	producer *queue.Producer,
	resources crawler.ResourceStore,
	siteMaps crawler.SiteMapStore,
	engine *retrieval.Engine,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		producer:  producer,
		resources: resources,
		siteMaps:  siteMaps,
		engine:    engine,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.AuthEnabled {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Route("/resources/{resource_id}", func(r chi.Router) {
			r.Post("/crawl", s.triggerCrawl)
			r.Get("/status", s.getResourceStatus)
		})
		r.Post("/campaigns/{campaign_id}/relevant-content", s.getRelevantContent)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// triggerCrawl starts a crawl for one resource. The enqueue itself is
// fire-and-forget; 202 means the request was accepted, not that the
// crawl will succeed.
func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resource_id")
	if err := s.producer.TriggerCrawl(r.Context(), resourceID); err != nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"websiteResourceId": resourceID,
		"status":            "queued",
	})
}

type resourceStatusResponse struct {
	WebsiteResourceID string     `json:"websiteResourceId"`
	Status            string     `json:"status"`
	PagesCrawled      int        `json:"pagesCrawled"`
	Error             string     `json:"error,omitempty"`
	LastFetched       *time.Time `json:"lastFetched,omitempty"`
}

func (s *Server) getResourceStatus(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resource_id")
	resource, err := s.resources.Get(r.Context(), resourceID)
	if err != nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, resourceStatusResponse{
		WebsiteResourceID: resource.ID,
		Status:            string(resource.Status),
		PagesCrawled:      resource.PagesCrawled,
		Error:             resource.ErrorText,
		LastFetched:       resource.LastFetched,
	})
}

type relevantContentRequest struct {
	Query             string `json:"query"`
	IncludeSourceInfo bool   `json:"includeSourceInfo"`
}

type relevantContentResponse struct {
	Content string             `json:"content"`
	Sources []retrieval.Source `json:"sources,omitempty"`
}

func (s *Server) getRelevantContent(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	var req relevantContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	result := s.engine.GetRelevantContent(r.Context(), campaignID, req.Query, req.IncludeSourceInfo)
	if result == nil {
		writeJSON(w, http.StatusOK, relevantContentResponse{})
		return
	}
	writeJSON(w, http.StatusOK, relevantContentResponse{
		Content: result.Content,
		Sources: result.Sources,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
