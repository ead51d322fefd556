// Package server exposes the router over HTTP: one request endpoint
// plus the operational surface (health, metrics).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/logger"
	"github.com/automateyournetwork/netagent/pkg/router"
)

// Server owns the HTTP surface and its lifecycle.
type Server struct {
	config     config.ServerConfig
	router     *router.Router
	httpServer *http.Server
}

func New(cfg config.ServerConfig, r *router.Router) *Server {
	s := &Server{config: cfg, router: r}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/v1/requests", s.handleRequest)

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("HTTP server starting", "addr", s.httpServer.Addr, "agents", s.router.AgentNames())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

type requestPayload struct {
	Request string `json:"request"`
}

// handleRequest accepts either a JSON body {"request": "..."} or a
// multipart form with a "request" field and any number of image file
// parts.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	request, attachments, err := s.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.router.Handle(r.Context(), request, attachments...)
	if err != nil && result == nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if result.Status == router.StatusError {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

func (s *Server) parseRequest(r *http.Request) (string, []router.Attachment, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		maxMB := s.config.MaxAttachmentMB
		if maxMB <= 0 {
			maxMB = 16
		}
		if err := r.ParseMultipartForm(int64(maxMB) << 20); err != nil {
			return "", nil, fmt.Errorf("invalid multipart form: %w", err)
		}

		request := r.FormValue("request")
		var attachments []router.Attachment
		if r.MultipartForm != nil {
			for _, headers := range r.MultipartForm.File {
				for _, header := range headers {
					file, err := header.Open()
					if err != nil {
						return "", nil, fmt.Errorf("failed to open attachment %q: %w", header.Filename, err)
					}
					data, err := io.ReadAll(file)
					file.Close()
					if err != nil {
						return "", nil, fmt.Errorf("failed to read attachment %q: %w", header.Filename, err)
					}
					attachments = append(attachments, router.Attachment{
						Name:      header.Filename,
						MediaType: header.Header.Get("Content-Type"),
						Data:      data,
					})
				}
			}
		}
		return request, attachments, nil
	}

	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return "", nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return payload.Request, nil, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": router.StatusError,
		"error":  err.Error(),
	})
}
