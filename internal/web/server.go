package web

import (
	"embed"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/deganai/lp-estimator/internal/config"
	"github.com/deganai/lp-estimator/internal/logger"
	"github.com/deganai/lp-estimator/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var landingHTML []byte

var serverStart = time.Now()

// WebServer handles HTTP requests for the IL estimator service
type WebServer struct {
	router *mux.Router
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Static files
	staticHandler := http.FileServer(http.FS(staticFiles))
	ws.router.PathPrefix("/static/").Handler(http.StripPrefix("/", staticHandler))

	// Landing page and health
	ws.router.HandleFunc("/", ws.handleLanding).Methods("GET")
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Discovery documents
	ws.router.HandleFunc("/.well-known/x402", ws.handleX402Manifest).Methods("GET", "HEAD")
	ws.router.HandleFunc("/.well-known/agent.json", ws.handleAgentCard).Methods("GET", "HEAD")

	// Estimator endpoints, gated by the payment middleware
	ws.router.Handle("/lp/estimate", ws.paymentMiddleware(http.HandlerFunc(ws.handlePoolEstimate))).Methods("POST")
	ws.router.Handle("/lp/position", ws.paymentMiddleware(http.HandlerFunc(ws.handlePositionEstimate))).Methods("POST")
	ws.router.HandleFunc("/lp/scenarios", ws.handleScenarios).Methods("GET")

	// AP2 entrypoint
	ws.router.HandleFunc("/entrypoints/"+entrypointID+"/invoke", ws.handleInvokeDiscovery).Methods("GET", "HEAD")
	ws.router.Handle("/entrypoints/"+entrypointID+"/invoke", ws.paymentMiddleware(http.HandlerFunc(ws.handleInvoke))).Methods("POST")

	// Journal endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/estimates", ws.handleGetEstimates).Methods("GET")
	api.HandleFunc("/stats", ws.handleGetStats).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Router exposes the configured router, used by tests and by Start.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// The journal is optional: a service without a DB is healthy with
	// journaling reported disabled.
	journalEnabled := state.Enabled()
	journalHealthy := false
	if journalEnabled {
		journalHealthy = state.TestDBConnection() == nil
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if journalEnabled && !journalHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
			"uptime_seconds":     int64(time.Since(serverStart).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "lp-impermanent-loss-estimator",
			"version": "1.0.0",
		},
		"estimator_status": map[string]interface{}{
			"free_mode":       config.FreeMode,
			"journal_enabled": journalEnabled,
			"journal_healthy": journalHealthy,
			"chains":          len(config.ChainRPCs),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleLanding serves the landing page HTML
func (ws *WebServer) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(landingHTML)
}

// handleGetEstimates returns the newest journaled estimates
func (ws *WebServer) handleGetEstimates(w http.ResponseWriter, r *http.Request) {
	if !state.Enabled() {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Estimate journal is disabled")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	estimates, err := state.GetRecentEstimates(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent estimates")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve estimates")
		return
	}

	response := map[string]interface{}{
		"estimates": estimates,
		"count":     len(estimates),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStats returns journal aggregates
func (ws *WebServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if !state.Enabled() {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Estimate journal is disabled")
		return
	}

	stats, err := state.GetStats()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get stats")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, stats)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-PAYMENT")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
