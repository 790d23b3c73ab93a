package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/database"
	"github.com/franckalain/grocerylens/internal/health"
	"github.com/franckalain/grocerylens/internal/models"
	"github.com/franckalain/grocerylens/internal/pipeline"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type Server struct {
	db       database.DB
	pipeline *pipeline.Pipeline
	logger   *zap.SugaredLogger
}

func New(db database.DB, p *pipeline.Pipeline, logger *zap.SugaredLogger) *Server {
	return &Server{
		db:       db,
		pipeline: p,
		logger:   logger,
	}
}

// Handler returns the HTTP routes. Static files are served from staticDir
// when it is not empty.
func (s *Server) Handler(staticDir string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products/{barcode}", s.handleGetProduct).Methods(http.MethodGet)
	api.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	api.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache", s.handleClearCache).Methods(http.MethodDelete)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/lists", s.handleCreateList).Methods(http.MethodPost)
	api.HandleFunc("/lists/{id}", s.handleGetList).Methods(http.MethodGet)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start(port, staticDir string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Infow("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type productResponse struct {
	Product  *models.ProductRecord  `json:"product"`
	Source   models.Source          `json:"source"`
	Analysis *models.HealthAnalysis `json:"analysis"`
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.Resolve(r.Context(), mux.Vars(r)["barcode"])
	switch {
	case errors.Is(err, pipeline.ErrInvalidBarcode):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, pipeline.ErrNotFound):
		respondError(w, http.StatusNotFound, "Product not found")
		return
	case err != nil:
		s.logger.Errorw("Resolve failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to resolve product")
		return
	}

	analysis := health.Classify(res.Product)
	respondJSON(w, http.StatusOK, productResponse{
		Product:  res.Product,
		Source:   res.Source,
		Analysis: &analysis,
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var record models.ProductRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product record")
		return
	}
	respondJSON(w, http.StatusOK, health.Classify(&record))
}

type cacheStatsResponse struct {
	TotalItems            int     `json:"total_items"`
	OldestEntryAgeSeconds float64 `json:"oldest_entry_age_seconds"`
	NewestEntryAgeSeconds float64 `json:"newest_entry_age_seconds"`
}

func newCacheStatsResponse(st models.CacheStats) cacheStatsResponse {
	return cacheStatsResponse{
		TotalItems:            st.TotalItems,
		OldestEntryAgeSeconds: st.OldestEntryAge.Seconds(),
		NewestEntryAgeSeconds: st.NewestEntryAge.Seconds(),
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipeline.CacheStats(r.Context())
	if err != nil {
		s.logger.Errorw("Cache stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to read cache stats")
		return
	}
	respondJSON(w, http.StatusOK, newCacheStatsResponse(st))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ClearCache(r.Context()); err != nil {
		s.logger.Errorw("Cache clear failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := s.db.GetRecentScanEvents(r.Context(), limit)
	if err != nil {
		s.logger.Errorw("Error retrieving history", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

type createListRequest struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	list, err := s.db.CreateShoppingList(r.Context(), req.Name, req.Items)
	if err != nil {
		s.logger.Errorw("Error creating shopping list", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create list")
		return
	}
	respondJSON(w, http.StatusCreated, list)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.GetShoppingList(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, database.ErrListNotFound):
		respondError(w, http.StatusNotFound, "Shopping list not found")
		return
	case err != nil:
		s.logger.Errorw("Error loading shopping list", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load list")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
