package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/lox/nutrisense/internal/models"
)

// LogRecommendation archives an advisor response compressed. Returns the
// entry ID, or 0 if identical content was already logged for the same
// reading and task.
func (s *Store) LogRecommendation(ctx context.Context, rec models.Recommendation) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(rec.Content)); err != nil {
		return 0, fmt.Errorf("compress recommendation: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256([]byte(rec.Content))
	hashHex := hex.EncodeToString(hash[:])

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_log
		(fingerprint, task, model, location, content_compressed, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, task, content_hash) DO NOTHING
	`, rec.Fingerprint, rec.Task, rec.Model, nullString(rec.Location),
		buf.Bytes(), hashHex, createdAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, &StorageError{Op: "insert recommendation", Err: err}
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "rows affected", Err: err}
	}
	if n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetRecommendations returns archived responses for a reading, newest first.
func (s *Store) GetRecommendations(ctx context.Context, fingerprint string) ([]models.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, task, model, location, content_compressed, content_hash, created_at
		FROM recommendation_log
		WHERE fingerprint = ?
		ORDER BY created_at DESC, id DESC
	`, fingerprint)
	if err != nil {
		return nil, &StorageError{Op: "list recommendations", Err: err}
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		var (
			r          models.Recommendation
			location   sql.NullString
			compressed []byte
			createdAt  string
		)
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Task, &r.Model, &location, &compressed, &r.ContentHash, &createdAt); err != nil {
			return nil, &StorageError{Op: "scan recommendation", Err: err}
		}
		content, err := decompress(compressed)
		if err != nil {
			return nil, fmt.Errorf("recommendation %d: %w", r.ID, err)
		}
		r.Content = content
		if location.Valid {
			r.Location = &location.String
		}
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("recommendation %d: parse created_at: %w", r.ID, err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list recommendations", Err: err}
	}
	return recs, nil
}

func decompress(b []byte) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	return string(out), nil
}
