// Package server exposes the conversion service over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tlxtech/textextract/internal/models"
	"github.com/tlxtech/textextract/internal/ratelimit"
	"github.com/tlxtech/textextract/internal/services"
)

// Server holds the route handlers' dependencies.
type Server struct {
	converter    *services.Converter
	blobs        services.BlobStore
	limiter      *ratelimit.Limiter
	uploadBucket string
}

// New wires the HTTP layer over the conversion service.
func New(converter *services.Converter, blobs services.BlobStore, limiter *ratelimit.Limiter, uploadBucket string) *Server {
	return &Server{
		converter:    converter,
		blobs:        blobs,
		limiter:      limiter,
		uploadBucket: uploadBucket,
	}
}

// Handler builds the router. Per-route limits mirror the deployed budgets:
// expensive conversion entry points get a tight window, status polling and
// housekeeping a loose one.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(CallerID)

		r.With(s.rateLimit("convertSync", 10)).Post("/convert-sync", s.handleConvertSync)
		r.With(s.rateLimit("convertAsync", 10)).Post("/convert-async", s.handleConvertAsync)
		r.With(s.rateLimit("convertStatus", 100)).Get("/convert-status", s.handleConvertStatus)
		r.With(s.rateLimit("clearOperation", 100)).Post("/clear-operation", s.handleClearOperation)
		r.With(s.rateLimit("ongoingOperation", 100)).Get("/ongoing-operation", s.handleOngoingOperation)

		r.With(s.rateLimit("upload", 10)).Post("/upload", s.handleUpload)
		r.With(s.rateLimit("checkFile", 20)).Get("/check-file", s.handleCheckFile)
		r.With(s.rateLimit("deleteFile", 20)).Delete("/delete-file", s.handleDeleteFile)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Message: message})
}
