package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/nutrisense/internal/metrics"
	"github.com/lox/nutrisense/internal/models"
	"github.com/lox/nutrisense/internal/soil"
)

// MaxLimit caps a single List page. Callers apply tighter limits of their own.
const MaxLimit = 1000

// timeLayout is fixed width so lexical order on created_at matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidPage = errors.New("invalid pagination")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// CorruptRecordError reports a stored row whose reading cannot be decoded.
type CorruptRecordError struct {
	ID  int64
	Err error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("record %d is corrupt: %v", e.ID, e.Err)
}
func (e *CorruptRecordError) Unwrap() error { return e.Err }

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens the SQLite database at path with WAL journaling and fully
// synchronous commits, so a successful write has reached disk.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveOptions carries the optional parts of a history record.
type SaveOptions struct {
	Summary  *string
	Location *string
}

// Save persists a reading with its score. If a record with the same
// fingerprint already exists it is returned unchanged with created=false;
// that is not an error. The UNIQUE constraint on fingerprint decides races
// between concurrent saves of the same reading.
func (s *Store) Save(ctx context.Context, r soil.Reading, score float64, opts SaveOptions) (*models.HistoryRecord, bool, error) {
	fp := soil.Fingerprint(r)
	data, err := json.Marshal(r)
	if err != nil {
		return nil, false, &StorageError{Op: "encode reading", Err: err}
	}
	createdAt := s.now().UTC()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO soil_records (fingerprint, soil_data, created_at, summary, location, health_score)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fp, string(data), createdAt.Format(timeLayout), nullString(opts.Summary), nullString(opts.Location), score)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("save", "error").Inc()
		return nil, false, &StorageError{Op: "insert record", Err: err}
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, &StorageError{Op: "rows affected", Err: err}
	}
	if n == 0 {
		metrics.StoreOperations.WithLabelValues("save", "duplicate").Inc()
		existing, err := s.getByFingerprint(ctx, fp)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, &StorageError{Op: "last insert id", Err: err}
	}
	metrics.StoreOperations.WithLabelValues("save", "created").Inc()

	return &models.HistoryRecord{
		ID:          id,
		Fingerprint: fp,
		Reading:     r,
		CreatedAt:   createdAt,
		Summary:     copyString(opts.Summary),
		Location:    copyString(opts.Location),
		HealthScore: score,
	}, true, nil
}

// ListOptions selects a page of history.
type ListOptions struct {
	// Location filters by case-insensitive substring when non-empty.
	Location string
	Limit    int
	Offset   int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.HistoryRecord, error) {
	if opts.Limit < 1 || opts.Limit > MaxLimit || opts.Offset < 0 {
		return nil, fmt.Errorf("%w: limit %d offset %d", ErrInvalidPage, opts.Limit, opts.Offset)
	}

	query := `SELECT id, fingerprint, soil_data, created_at, summary, location, health_score FROM soil_records`
	var args []any
	if opts.Location != "" {
		query += ` WHERE instr(lower(location), lower(?)) > 0`
		args = append(args, opts.Location)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("list", "error").Inc()
		return nil, &StorageError{Op: "list records", Err: err}
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list records", Err: err}
	}
	metrics.StoreOperations.WithLabelValues("list", "ok").Inc()
	return records, nil
}

// Get returns the record with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*models.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, soil_data, created_at, summary, location, health_score
		FROM soil_records
		WHERE id = ?
	`, id)
	return scanRecord(row)
}

func (s *Store) getByFingerprint(ctx context.Context, fp string) (*models.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, soil_data, created_at, summary, location, health_score
		FROM soil_records
		WHERE fingerprint = ?
	`, fp)
	return scanRecord(row)
}

// Delete permanently removes a record. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM soil_records WHERE id = ?`, id)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("delete", "error").Inc()
		return false, &StorageError{Op: "delete record", Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "rows affected", Err: err}
	}
	metrics.StoreOperations.WithLabelValues("delete", "ok").Inc()
	return n > 0, nil
}

// Count returns the number of records, optionally filtered by location.
func (s *Store) Count(ctx context.Context, location string) (int, error) {
	query := `SELECT COUNT(*) FROM soil_records`
	var args []any
	if location != "" {
		query += ` WHERE instr(lower(location), lower(?)) > 0`
		args = append(args, location)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &StorageError{Op: "count records", Err: err}
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*models.HistoryRecord, error) {
	var (
		rec       models.HistoryRecord
		data      string
		createdAt string
		summary   sql.NullString
		location  sql.NullString
	)
	err := sc.Scan(&rec.ID, &rec.Fingerprint, &data, &createdAt, &summary, &location, &rec.HealthScore)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "scan record", Err: err}
	}

	rec.Reading, err = decodeReading(data)
	if err != nil {
		return nil, &CorruptRecordError{ID: rec.ID, Err: err}
	}
	rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, &CorruptRecordError{ID: rec.ID, Err: fmt.Errorf("parse created_at: %w", err)}
	}
	if summary.Valid {
		rec.Summary = &summary.String
	}
	if location.Valid {
		rec.Location = &location.String
	}
	return &rec, nil
}

// decodeReading requires every field to be present in the stored JSON.
func decodeReading(data string) (soil.Reading, error) {
	var values map[soil.Field]float64
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return soil.Reading{}, fmt.Errorf("decode soil_data: %w", err)
	}
	for _, f := range soil.Fields {
		if _, ok := values[f]; !ok {
			return soil.Reading{}, fmt.Errorf("soil_data missing %s", f)
		}
	}
	var r soil.Reading
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return soil.Reading{}, fmt.Errorf("decode soil_data: %w", err)
	}
	return r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
