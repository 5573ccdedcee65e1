// Package export renders stored history as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lox/nutrisense/internal/models"
	"github.com/lox/nutrisense/internal/soil"
)

var header = []string{
	"ID", "Timestamp", "Location", "Health Score",
	"pH", "EC", "Moisture", "Nitrogen", "Phosphorus", "Potassium", "Microbial", "Temperature",
	"Summary",
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []models.HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(row(rec)); err != nil {
			return fmt.Errorf("write record %d: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(rec models.HistoryRecord) []string {
	out := make([]string, 0, len(header))
	out = append(out,
		strconv.FormatInt(rec.ID, 10),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		deref(rec.Location),
		formatFloat(rec.HealthScore),
	)
	for _, f := range soil.Fields {
		v, _ := rec.Reading.Value(f)
		out = append(out, formatFloat(v))
	}
	return append(out, deref(rec.Summary))
}

// Filename names an export file for a location filter on the given day.
func Filename(location string, now time.Time) string {
	name := "all"
	if loc := sanitize(location); loc != "" {
		name = loc
	}
	return fmt.Sprintf("soil_history_%s_%s.csv", name, now.Format("20060102"))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ' || r == '_' || r == '.':
			return '_'
		}
		return -1
	}, strings.TrimSpace(s))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
