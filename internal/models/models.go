package models

import (
	"time"

	"github.com/lox/nutrisense/internal/soil"
)

// HistoryRecord is a persisted soil analysis. Records are immutable once
// written; the fingerprint is unique across the table.
type HistoryRecord struct {
	ID          int64        `json:"id"`
	Fingerprint string       `json:"data_hash"`
	Reading     soil.Reading `json:"soil_data"`
	CreatedAt   time.Time    `json:"timestamp"`
	Summary     *string      `json:"summary"`
	Location    *string      `json:"location"`
	HealthScore float64      `json:"health_score"`
}

// Recommendation is an archived advisor response for a reading.
type Recommendation struct {
	ID          int64     `json:"id"`
	Fingerprint string    `json:"data_hash"`
	Task        string    `json:"recommendation_type"`
	Model       string    `json:"model_used"`
	Location    *string   `json:"location"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"timestamp"`
}
