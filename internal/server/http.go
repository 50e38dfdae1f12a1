package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/consumer"
	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// List paging bounds.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/parcel-item-events", s.handleListParcelItemEvents)
	mux.HandleFunc("GET /v1/parcel-item-events/{tracking_reference}", s.handleGetParcelItemEvent)
	mux.HandleFunc("GET /v1/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/events/stream", s.handleChangeStream)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ping(ctx); err != nil {
		s.logger.Warn("server: store ping failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetParcelItemEvent handles GET /v1/parcel-item-events/{tracking_reference}.
func (s *Server) handleGetParcelItemEvent(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("tracking_reference")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "tracking_reference is required")
		return
	}

	rec, err := s.store.GetParcelItemEvent(r.Context(), ref)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "parcel item event not found")
		return
	}
	if err != nil {
		s.logger.Error("server: get parcel item event", "tracking_reference", ref, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get parcel item event")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleListParcelItemEvents handles GET /v1/parcel-item-events.
func (s *Server) handleListParcelItemEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, total, err := s.store.ListParcelItemEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("server: list parcel item events", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list parcel item events")
		return
	}

	// Ensure records is never null in JSON output.
	if recs == nil {
		recs = []*model.ParcelItemEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"total":   total,
	})
}

func parseListFilter(r *http.Request) (model.ParcelItemEventFilter, error) {
	q := r.URL.Query()
	filter := model.ParcelItemEventFilter{
		EdifactCode: q.Get("edifact_code"),
		Limit:       defaultListLimit,
	}

	if v := q.Get("tpid"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.TPID = append(filter.TPID, t)
			}
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s: want RFC 3339 time", p.name)
		}
		*p.dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("invalid limit")
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

// statsResponse is the body of GET /v1/stats.
type statsResponse struct {
	TPIDs    []*model.TPIDCount `json:"tpids"`
	Consumer *consumer.Stats    `json:"consumer,omitempty"`
}

// handleGetStats handles GET /v1/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByTPID(r.Context())
	if err != nil {
		s.logger.Error("server: count by tpid", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	if counts == nil {
		counts = []*model.TPIDCount{}
	}

	resp := statsResponse{TPIDs: counts}
	if s.stats != nil {
		st := s.stats.Stats()
		resp.Consumer = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
