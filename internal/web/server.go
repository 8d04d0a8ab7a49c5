package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/metrics"
	"github.com/dma-labs/ajna-dma/internal/pool"
	"github.com/dma-labs/ajna-dma/internal/service"
	"github.com/dma-labs/ajna-dma/internal/simulations"
	"github.com/dma-labs/ajna-dma/internal/solver"
	"github.com/dma-labs/ajna-dma/internal/state"
	"github.com/dma-labs/ajna-dma/internal/strategies"
	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var webLogger = logger.GetForComponent("web_server")

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 4 << 20
)

type ctxKey struct{}

// WebServer serves strategy previews, capacity queries and the snapshot cache over HTTP.
type WebServer struct {
	router   *mux.Router
	port     string
	service  *service.Service
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	server   *http.Server
	started  time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, svc *service.Service, gatherer prometheus.Gatherer, m *metrics.Metrics) *WebServer {
	if port == "" {
		port = "8080"
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ws := &WebServer{
		router:   mux.NewRouter(),
		port:     port,
		service:  svc,
		gatherer: gatherer,
		metrics:  m,
		started:  time.Now(),
	}
	ws.setupRoutes()
	return ws
}

// Handler exposes the router, used by tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/ajna/max-generate", ws.handleMaxGenerate).Methods("POST")
	api.HandleFunc("/ajna/max-withdraw", ws.handleMaxWithdraw).Methods("POST")
	api.HandleFunc("/ajna/{product}/{action}", ws.handleStrategy).Methods("POST")
	api.HandleFunc("/snapshots/{block}", ws.handleGetVariants).Methods("GET")
	api.HandleFunc("/snapshots/{block}/{variant}", ws.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/snapshots/{block}/{variant}", ws.handlePutSnapshot).Methods("PUT")

	ws.router.Use(ws.requestIDMiddleware)
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start blocks serving requests until Shutdown is called.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	return ws.server.Shutdown(ctx)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := "OK"
	statusCode := http.StatusOK
	storeHealthy := true
	if err := ws.service.Healthy(r.Context()); err != nil {
		webLogger.Warn().Err(err).Msg("Snapshot store unhealthy")
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
		storeHealthy = false
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "ajna-dma",
			"version": "1.0.0",
		},
		"snapshot_store_healthy": storeHealthy,
	})
}

func (ws *WebServer) handleStrategy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req service.StrategyRequest
	if !ws.readJSON(w, r, &req) {
		return
	}
	out, err := ws.service.BuildStrategy(r.Context(), vars["product"], vars["action"], req)
	if err != nil {
		ws.writeServiceError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, out)
}

func (ws *WebServer) handleMaxGenerate(w http.ResponseWriter, r *http.Request) {
	var req service.MaxGenerateRequest
	if !ws.readJSON(w, r, &req) {
		return
	}
	amount, err := ws.service.MaxGenerate(r.Context(), req)
	if err != nil {
		ws.writeServiceError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"max_generate": amount})
}

func (ws *WebServer) handleMaxWithdraw(w http.ResponseWriter, r *http.Request) {
	var req service.MaxWithdrawRequest
	if !ws.readJSON(w, r, &req) {
		return
	}
	amount, err := ws.service.MaxWithdraw(r.Context(), req)
	if err != nil {
		ws.writeServiceError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"max_withdraw": amount})
}

func (ws *WebServer) handleGetVariants(w http.ResponseWriter, r *http.Request) {
	block, ok := ws.blockNumber(w, r)
	if !ok {
		return
	}
	variants, err := ws.service.Cache().Variants(r.Context(), block)
	if err != nil {
		ws.writeServiceError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"block_number": block,
		"variants":     variants,
	})
}

func (ws *WebServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	block, ok := ws.blockNumber(w, r)
	if !ok {
		return
	}
	p, err := ws.service.Cache().Get(r.Context(), state.SnapshotKey{BlockNumber: block, Variant: mux.Vars(r)["variant"]})
	if err != nil {
		ws.writeServiceError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, p)
}

func (ws *WebServer) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	block, ok := ws.blockNumber(w, r)
	if !ok {
		return
	}
	var p types.Pool
	if !ws.readJSON(w, r, &p) {
		return
	}
	key := state.SnapshotKey{BlockNumber: block, Variant: mux.Vars(r)["variant"]}
	if err := ws.service.Cache().Put(r.Context(), key, p); err != nil {
		ws.writeServiceError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, key)
}

func (ws *WebServer) blockNumber(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	block, err := strconv.ParseUint(mux.Vars(r)["block"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, r, http.StatusBadRequest, "Invalid block number")
		return 0, false
	}
	return block, true
}

func (ws *WebServer) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		ws.writeErrorResponse(w, r, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps decision layer errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, state.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, state.ErrInvalidKey),
		errors.Is(err, config.ErrUnknownToken),
		errors.Is(err, config.ErrUnknownNetwork):
		return http.StatusBadRequest
	case errors.Is(err, strategies.ErrSwapDataUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, pool.ErrInvalidBuckets),
		errors.Is(err, pool.ErrInvalidPool),
		errors.Is(err, pool.ErrPriceOutOfRange),
		errors.Is(err, pool.ErrIndexOutOfRange),
		errors.Is(err, solver.ErrInvalidPosition),
		errors.Is(err, simulations.ErrInvalidPosition),
		errors.Is(err, simulations.ErrInvalidDebtChange),
		errors.Is(err, strategies.ErrInvalidAmount),
		errors.Is(err, strategies.ErrPositionExists),
		errors.Is(err, strategies.ErrNoPosition),
		errors.Is(err, strategies.ErrInvalidRiskRatio),
		errors.Is(err, strategies.ErrInsufficientSwapOutput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (ws *WebServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		webLogger.Error().Err(err).Str("request_id", requestID(r)).Str("path", r.URL.Path).Msg("Request failed")
	}
	ws.writeErrorResponse(w, r, code, err.Error())
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
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":      true,
		"message":    message,
		"request_id": requestID(r),
		"timestamp":  time.Now().UTC(),
	})
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// requestIDMiddleware reuses a caller supplied request id or mints one.
func (ws *WebServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests and counts them per route template.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if ws.metrics != nil {
			ws.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(wrapper.statusCode)).Inc()
		}

		webLogger.Info().
			Str("request_id", requestID(r)).
			Str("method", r.Method).
			Str("route", route).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
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
