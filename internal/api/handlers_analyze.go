package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lox/nutrisense/internal/advisor"
	"github.com/lox/nutrisense/internal/metrics"
	"github.com/lox/nutrisense/internal/models"
	"github.com/lox/nutrisense/internal/soil"
	"github.com/lox/nutrisense/internal/store"
)

const (
	maxBodyBytes      = 1 << 20
	maxLocationLength = 200
)

type analyzeRequest struct {
	SoilData      json.RawMessage `json:"soil_data"`
	Location      *string         `json:"location"`
	SaveToHistory *bool           `json:"save_to_history"`
}

type recommendationRequest struct {
	SoilData json.RawMessage `json:"soil_data"`
	Location *string         `json:"location"`
	Model    string          `json:"model"`
}

type recommendationResponse struct {
	RecommendationType string    `json:"recommendation_type"`
	Content            string    `json:"content"`
	ModelUsed          string    `json:"model_used"`
	Timestamp          time.Time `json:"timestamp"`
}

// recommendationKinds maps URL path segments to advisor tasks and the
// recommendation_type reported back.
var recommendationKinds = map[string]struct {
	task  advisor.Task
	label string
}{
	"health-summary": {advisor.TaskSummary, "summary"},
	"crops":          {advisor.TaskCrops, "crops"},
	"fertilizer":     {advisor.TaskFertilizer, "fertilizer"},
	"irrigation":     {advisor.TaskIrrigation, "irrigation"},
}

// decodeBody reads at most maxBodyBytes; a larger body yields an error
// wrapping *http.MaxBytesError.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// parseReading decodes and validates the soil_data object.
func parseReading(raw json.RawMessage) (soil.Reading, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return soil.Reading{}, errors.New("soil_data is required")
	}
	var fields map[soil.Field]*float64
	if err := json.Unmarshal(raw, &fields); err != nil {
		return soil.Reading{}, fmt.Errorf("soil_data: %w", err)
	}
	// null counts as missing
	values := make(map[soil.Field]float64, len(fields))
	for f, v := range fields {
		if v != nil {
			values[f] = *v
		}
	}
	return soil.NewReading(values)
}

// normalizeLocation trims the location and drops it when blank.
func normalizeLocation(loc *string) (*string, error) {
	if loc == nil {
		return nil, nil
	}
	l := strings.TrimSpace(*loc)
	if l == "" {
		return nil, nil
	}
	if len(l) > maxLocationLength {
		return nil, fmt.Errorf("location must be at most %d characters", maxLocationLength)
	}
	return &l, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	reading, err := parseReading(req.SoilData)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("invalid").Inc()
		writeValidation(w, err)
		return
	}
	location, err := normalizeLocation(req.Location)
	if err != nil {
		writeValidation(w, err)
		return
	}

	analysis := s.analyze(r, reading, location)

	if req.SaveToHistory == nil || *req.SaveToHistory {
		s.saveRecord(r, reading, analysis.HealthScore, store.SaveOptions{Location: location})
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) analyze(r *http.Request, reading soil.Reading, location *string) soil.Analysis {
	analysis := soil.Analyze(reading, location, s.now().UTC())
	s.observeScore(r, analysis.HealthScore, analysis.Degraded)
	return analysis
}

// score computes the health score for a record saved outside /api/analyze.
func (s *Server) score(r *http.Request, reading soil.Reading) float64 {
	score, degraded := soil.Score(reading)
	s.observeScore(r, score, degraded)
	return score
}

func (s *Server) observeScore(r *http.Request, score float64, degraded error) {
	if degraded != nil {
		log.Printf("api: score degraded: %v (id=%s)", degraded, RequestID(r.Context()))
		metrics.AnalysesTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	}
	metrics.HealthScore.Observe(score)
}

// saveRecord persists best-effort: a storage failure is logged and counted
// but never fails the request.
func (s *Server) saveRecord(r *http.Request, reading soil.Reading, score float64, opts store.SaveOptions) *models.HistoryRecord {
	rec, created, err := s.store.Save(r.Context(), reading, score, opts)
	if err != nil {
		log.Printf("api: save history: %v (id=%s)", err, RequestID(r.Context()))
		metrics.AnalysesTotal.WithLabelValues("save_failed").Inc()
		return nil
	}
	if !created {
		log.Printf("api: reading already stored as record %d", rec.ID)
	}
	return rec
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	kind, ok := recommendationKinds[r.PathValue("kind")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Unknown recommendation type")
		return
	}

	var req recommendationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	reading, err := parseReading(req.SoilData)
	if err != nil {
		writeValidation(w, err)
		return
	}
	location, err := normalizeLocation(req.Location)
	if err != nil {
		writeValidation(w, err)
		return
	}
	var loc string
	if location != nil {
		loc = *location
	}

	res := s.advisor.Recommend(r.Context(), reading, kind.task, loc, req.Model)
	if res.Err != nil {
		log.Printf("api: %s recommendation: %v (id=%s)", kind.label, res.Err, RequestID(r.Context()))
	} else {
		s.archiveRecommendation(r, reading, kind.label, res, location)
		if kind.task == advisor.TaskSummary {
			score := s.score(r, reading)
			content := res.Content
			s.saveRecord(r, reading, score, store.SaveOptions{Summary: &content, Location: location})
		}
	}

	writeJSON(w, http.StatusOK, recommendationResponse{
		RecommendationType: kind.label,
		Content:            res.Content,
		ModelUsed:          res.Model,
		Timestamp:          s.now().UTC(),
	})
}

func (s *Server) archiveRecommendation(r *http.Request, reading soil.Reading, label string, res advisor.Result, location *string) {
	_, err := s.store.LogRecommendation(r.Context(), models.Recommendation{
		Fingerprint: soil.Fingerprint(reading),
		Task:        label,
		Model:       res.Model,
		Location:    location,
		Content:     res.Content,
		CreatedAt:   s.now(),
	})
	if err != nil {
		log.Printf("api: archive recommendation: %v (id=%s)", err, RequestID(r.Context()))
	}
}
