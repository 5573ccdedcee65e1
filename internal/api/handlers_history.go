package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/nutrisense/internal/export"
	"github.com/lox/nutrisense/internal/models"
	"github.com/lox/nutrisense/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultExportLimit  = 100
	maxExportLimit      = store.MaxLimit
)

// queryInt reads an integer query parameter within [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("record id must be a positive integer")
	}
	return id, nil
}

func locationFilter(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("location"))
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		writeValidation(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0, int(^uint(0)>>1))
	if err != nil {
		writeValidation(w, err)
		return
	}

	records, err := s.store.List(r.Context(), store.ListOptions{
		Location: locationFilter(r),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.writeError(w, r, "retrieve history", err)
		return
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryCount(w http.ResponseWriter, r *http.Request) {
	location := locationFilter(r)
	count, err := s.store.Count(r.Context(), location)
	if err != nil {
		s.writeError(w, r, "count records", err)
		return
	}
	var loc *string
	if location != "" {
		loc = &location
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "location": loc})
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeValidation(w, err)
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "retrieve record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeValidation(w, err)
		return
	}
	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "delete record", err)
		return
	}
	if !deleted {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Record with ID %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Record %d deleted successfully", id),
		"record_id": id,
	})
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultExportLimit, 1, maxExportLimit)
	if err != nil {
		writeValidation(w, err)
		return
	}
	location := locationFilter(r)

	records, err := s.store.List(r.Context(), store.ListOptions{Location: location, Limit: limit})
	if err != nil {
		s.writeError(w, r, "export history", err)
		return
	}
	if len(records) == 0 {
		writeDetail(w, http.StatusNotFound, "No records found to export")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		s.writeError(w, r, "export history", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(location, s.now())))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("api: write export: %v", err)
	}
}

func (s *Server) handleHistoryRecommendations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeValidation(w, err)
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "retrieve record", err)
		return
	}
	recs, err := s.store.GetRecommendations(r.Context(), rec.Fingerprint)
	if err != nil {
		s.writeError(w, r, "retrieve recommendations", err)
		return
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recs)
}
