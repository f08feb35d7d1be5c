// Package api exposes the scanner over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/politica-cm/politica-scanner/internal/model"
	"github.com/politica-cm/politica-scanner/internal/scan"
)

const maxBodyBytes = 1 << 20

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, req scan.Request) (*scan.Outcome, error)
}

// Server handles scan requests.
type Server struct {
	scanner     Scanner
	scanTimeout time.Duration
}

// NewServer creates a Server. A zero scanTimeout means scans only end with
// the request.
func NewServer(scanner Scanner, scanTimeout time.Duration) *Server {
	return &Server{scanner: scanner, scanTimeout: scanTimeout}
}

// Router returns the HTTP handler with CORS and recovery middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/", s.handleScan)
	r.Post("/scan", s.handleScan)
	return r
}

type scanRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	ManualScan bool   `json:"manual_scan"`
}

type scanResponse struct {
	Success     bool              `json:"success"`
	ScanResults *model.ScanResult `json:"scan_results"`
	LogID       string            `json:"log_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req, err := decodeScanRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if s.scanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scanTimeout)
		defer cancel()
	}

	out, err := s.scanner.Scan(ctx, req)
	if err != nil {
		fields := []zap.Field{
			zap.String("target_type", string(req.TargetType)),
			zap.String("target_id", req.TargetID),
			zap.Error(err),
		}
		if out != nil {
			fields = append(fields, zap.String("log_id", out.LogID))
		}
		zap.L().Error("api: scan failed", fields...)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: scanErrorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Success:     true,
		ScanResults: out.Result,
		LogID:       out.LogID,
	})
}

// decodeScanRequest parses and validates the request body.
func decodeScanRequest(w http.ResponseWriter, r *http.Request) (scan.Request, error) {
	var body scanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return scan.Request{}, eris.New("invalid request body")
	}
	tt, err := model.ParseTargetType(body.TargetType)
	if err != nil {
		return scan.Request{}, eris.New("target_type must be politician or political_party")
	}
	id := strings.TrimSpace(body.TargetID)
	if id == "" {
		return scan.Request{}, eris.New("target_id is required")
	}
	return scan.Request{TargetType: tt, TargetID: id, Manual: body.ManualScan}, nil
}

func scanErrorMessage(err error) string {
	switch {
	case errors.Is(err, scan.ErrTargetNotFound):
		return "target not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "scan timed out"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
