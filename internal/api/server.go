package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/lox/nutrisense/internal/advisor"
	"github.com/lox/nutrisense/internal/store"
)

const (
	serviceName    = "NutriSense API"
	serviceVersion = "1.0.0"
)

// DefaultCORSOrigins are the local front-end dev servers.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// Options configures a Server.
type Options struct {
	// Environment "development" exposes internal error detail in 500 responses.
	Environment string
	CORSOrigins []string
}

type Server struct {
	store   *store.Store
	advisor *advisor.Advisor
	port    string
	opts    Options
	now     func() time.Time
}

func NewServer(store *store.Store, adv *advisor.Advisor, port string, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = DefaultCORSOrigins
	}
	return &Server{
		store:   store,
		advisor: adv,
		port:    port,
		opts:    opts,
		now:     time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze/recommendations/{kind}", s.handleRecommendation)

	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/count", s.handleHistoryCount)
	mux.HandleFunc("POST /api/history/export", s.handleHistoryExport)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistoryGet)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleHistoryDelete)
	mux.HandleFunc("GET /api/history/{id}/recommendations", s.handleHistoryRecommendations)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(withRequestID(withLogging(mux)))
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   serviceName,
		"version":   serviceVersion,
		"status":    "online",
		"timestamp": s.now().UTC(),
		"docs":      "/metrics",
		"endpoints": map[string]string{
			"analyze":         "/api/analyze",
			"recommendations": "/api/analyze/recommendations/{health-summary,crops,fertilizer,irrigation}",
			"history":         "/api/history",
			"health":          "/health",
		},
	})
}

type healthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{
		Status:    "healthy",
		Timestamp: s.now().UTC(),
		Services: map[string]string{
			"database":   "connected",
			"ai_service": "configured",
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.Printf("health: database ping: %v", err)
		health.Status = "degraded"
		health.Services["database"] = "disconnected"
	}
	if !s.advisor.Configured() {
		health.Services["ai_service"] = "not_configured"
	}

	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}
