// Package api exposes enrollment, verification, and identification over
// HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kweli-data/minutiae.registry/internal/config"
	"github.com/kweli-data/minutiae.registry/internal/enroll"
	"github.com/kweli-data/minutiae.registry/internal/httputil"
	"github.com/kweli-data/minutiae.registry/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server handles the HTTP surface over the enrollment service.
type Server struct {
	svc *enroll.Service
	cfg *config.TuningConfig
}

// NewServer creates a Server.
func NewServer(svc *enroll.Service, cfg *config.TuningConfig) *Server {
	return &Server{svc: svc, cfg: cfg}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/templates/enroll", s.enrollTemplate)
	mux.HandleFunc("/api/templates/verify", s.verifyTemplate)
	mux.HandleFunc("/api/templates/identify", s.identifyTemplate)
	mux.HandleFunc("/api/templates/", s.templateByID)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"fusion_eps":         s.cfg.GetFusionEps(),
		"fusion_min_samples": s.cfg.GetFusionMinSamples(),
		"grid_step":          s.cfg.GetGridStep(),
		"angle_step":         s.cfg.GetAngleStep(),
		"stabilize_radius":   s.cfg.GetStabilizeRadius(),
		"template_size":      s.cfg.GetTemplateSize(),
		"match_threshold":    s.cfg.GetMatchThreshold(),
		"gallery_workers":    s.cfg.GetGalleryWorkers(),
		"gallery_limit":      s.cfg.GetGalleryLimit(),
	})
}
