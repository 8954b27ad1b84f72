package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/folio-protocol/folio-core/internal/auction"
	"github.com/folio-protocol/folio-core/internal/config"
	"github.com/folio-protocol/folio-core/internal/logger"
	"github.com/folio-protocol/folio-core/internal/state"
	"github.com/folio-protocol/folio-core/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes a read-only HTTP view of the keeper's persisted state.
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
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/basket", ws.handleGetBasket).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/auctions", ws.handleGetAuctions).Methods("GET")
	api.HandleFunc("/auctions/{id}", ws.handleGetAuction).Methods("GET")
	api.HandleFunc("/auctions/{id}/price", ws.handleGetAuctionPrice).Methods("GET")
	api.HandleFunc("/distributions", ws.handleGetDistributions).Methods("GET")
	api.HandleFunc("/rewards", ws.handleGetRewards).Methods("GET")
	api.HandleFunc("/pokes", ws.handleGetPokes).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server and keeper health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	var lastPoke int64
	var staleSeconds int64
	if dbHealthy {
		pokes, err := state.LoadRecentPokes(config.BasketID, 1)
		if err != nil || len(pokes) == 0 {
			hasErrors = true
		} else {
			lastPoke = pokes[0].PokeTimestamp
			staleSeconds = time.Now().Unix() - lastPoke
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "folio-keeper",
			"version": "1.0.0",
		},
		"keeper_status": map[string]interface{}{
			"basket_id":        config.BasketID,
			"database_healthy": dbHealthy,
			"last_poke":        lastPoke,
			"stale_seconds":    staleSeconds,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetBasket returns the basket's fee state and recipient table
func (ws *WebServer) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	basketState, totalSupply, recipients, err := state.LoadBasketState(config.BasketID)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load basket state")
		ws.writeErrorResponse(w, http.StatusNotFound, "Basket state not found")
		return
	}

	// Float renderings are for operators; the exact D18 values are in state.
	daoPending, _ := utils.D18ToFloat64(basketState.DAOPendingFeeShares)
	recipientsPending, _ := utils.D18ToFloat64(basketState.FeeRecipientsPendingFeeShares)

	response := map[string]interface{}{
		"basket_id":                     config.BasketID,
		"state":                         basketState,
		"total_supply":                  totalSupply,
		"fee_recipients":                recipients,
		"dao_pending_shares":            daoPending,
		"fee_recipients_pending_shares": recipientsPending,
		"timestamp":                     time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetParameters returns current protocol parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params, err := state.LoadActiveProtocolParameters("default")
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get protocol parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve protocol parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAuctions returns all stored auctions with their current status
func (ws *WebServer) handleGetAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := state.LoadAllAuctions()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load auctions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve auctions")
		return
	}

	now := time.Now().Unix()
	items := make([]map[string]interface{}, 0, len(auctions))
	for _, a := range auctions {
		items = append(items, map[string]interface{}{
			"auction": a,
			"status":  a.TryGetStatus(now).String(),
		})
	}

	response := map[string]interface{}{
		"auctions": items,
		"count":    len(items),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAuction returns a specific auction by ID
func (ws *WebServer) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid auction ID")
		return
	}

	a, err := state.LoadAuction(id)
	if err != nil {
		webLogger.Error().Err(err).Uint64("auctionId", id).Msg("Failed to load auction")
		ws.writeErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}

	response := map[string]interface{}{
		"auction": a,
		"status":  a.TryGetStatus(time.Now().Unix()).String(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAuctionPrice evaluates the decay curve for an open auction.
// An optional ?now= overrides the evaluation timestamp.
func (ws *WebServer) handleGetAuctionPrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid auction ID")
		return
	}

	now := time.Now().Unix()
	if nowStr := r.URL.Query().Get("now"); nowStr != "" {
		parsed, err := strconv.ParseInt(nowStr, 10, 64)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid now timestamp")
			return
		}
		now = parsed
	}

	a, err := state.LoadAuction(id)
	if err != nil {
		webLogger.Error().Err(err).Uint64("auctionId", id).Msg("Failed to load auction")
		ws.writeErrorResponse(w, http.StatusNotFound, "Auction not found")
		return
	}

	price, err := auction.Price(a, now)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusConflict, "Auction is not open at the requested time")
		return
	}

	priceFloat, _ := utils.D18ToFloat64(price)
	response := map[string]interface{}{
		"auction_id":  id,
		"now":         now,
		"price":       price,
		"price_float": priceFloat,
		"status":      a.TryGetStatus(now).String(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetDistributions returns open fee distribution snapshots
func (ws *WebServer) handleGetDistributions(w http.ResponseWriter, r *http.Request) {
	distributions, err := state.LoadOpenDistributions()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load open distributions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve distributions")
		return
	}

	response := map[string]interface{}{
		"distributions": distributions,
		"count":         len(distributions),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRewards returns all reward token tracking records
func (ws *WebServer) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	infos, err := state.LoadRewardInfos()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load reward tokens")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve reward tokens")
		return
	}

	response := map[string]interface{}{
		"reward_tokens": infos,
		"count":         len(infos),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPokes returns recent keeper accrual history
func (ws *WebServer) handleGetPokes(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	pokes, err := state.LoadRecentPokes(config.BasketID, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load poke log")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve poke log")
		return
	}

	response := map[string]interface{}{
		"pokes": pokes,
		"count": len(pokes),
		"limit": limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request at debug level
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}
