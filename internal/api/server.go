// Package api exposes the reservation engine over HTTP. Business outcomes
// travel in result bodies (success flag plus message); HTTP status codes are
// reserved for malformed requests and infrastructure problems.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"slothold/internal/config"
	"slothold/internal/database"
	"slothold/internal/domain"
	"slothold/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg    config.APIConfig
	engine domain.ReservationEngine
	store  domain.Store
	db     *database.DB
	logger *zerolog.Logger
	server *http.Server
}

// NewServer builds the router. db may be nil when booking persistence is not
// configured; the records endpoint then answers 503.
func NewServer(cfg config.APIConfig, engine domain.ReservationEngine, store domain.Store, db *database.DB, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		store:  store,
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(rateLimit(cfg))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyAuth(cfg.Auth))
		}
		r.Post("/reservations", s.handleReserve)
		r.Get("/reservations/{id}", s.handleStatus)
		r.Post("/reservations/{id}/extend", s.handleExtend)
		r.Post("/reservations/{id}/convert", s.handleConvert)
		r.Delete("/reservations/{id}", s.handleRelease)
		r.Get("/availability", s.handleAvailability)
		r.Get("/bookings/recent", s.handleRecentBookings)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	result := s.engine.Reserve(r.Context(), &req)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := s.engine.Status(r.Context(), id)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	var req models.ExtensionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.ReservationID = chi.URLParam(r, "id")
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	result := s.engine.Extend(r.Context(), &req)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.BookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	ok := s.engine.ConvertToBooking(r.Context(), chi.URLParam(r, "id"), body.BookingID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	ok := s.engine.Release(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	datetimeStr := r.URL.Query().Get("datetime")
	serviceType := r.URL.Query().Get("service_type")

	datetime, err := time.Parse(time.RFC3339, datetimeStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "datetime must be RFC 3339")
		return
	}
	if !models.IsServiceType(serviceType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown service type %q", serviceType))
		return
	}

	available := s.engine.IsSlotAvailable(r.Context(), datetime, serviceType)
	writeJSON(w, http.StatusOK, map[string]any{
		"datetime":     datetime,
		"service_type": serviceType,
		"available":    available,
	})
}

func (s *Server) handleRecentBookings(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "booking records are not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	records, err := s.db.ListRecentBookings(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list recent bookings")
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
