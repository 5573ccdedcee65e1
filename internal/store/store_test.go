package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/nutrisense/internal/models"
	"github.com/lox/nutrisense/internal/soil"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// steppingClock returns a clock that advances one minute per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func sampleReading(n float64) soil.Reading {
	return soil.Reading{PH: 7.0, EC: 1.5, Moisture: 30, Nitrogen: 60 + n, Phosphorus: 35, Potassium: 180, Microbial: 5.5, Temperature: 25}
}

func strPtr(s string) *string { return &s }

func TestSave_CreatesRecord(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := sampleReading(0)
	rec, created, err := store.Save(ctx, r, 88.1, SaveOptions{Location: strPtr("North Field")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !created {
		t.Fatal("created = false, want true")
	}
	if rec.ID == 0 {
		t.Error("ID = 0, want assigned id")
	}
	if rec.Fingerprint != soil.Fingerprint(r) {
		t.Errorf("Fingerprint = %q, want %q", rec.Fingerprint, soil.Fingerprint(r))
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Reading != r {
		t.Errorf("Reading = %+v, want %+v", got.Reading, r)
	}
	if got.HealthScore != 88.1 {
		t.Errorf("HealthScore = %v, want 88.1", got.HealthScore)
	}
	if got.Location == nil || *got.Location != "North Field" {
		t.Errorf("Location = %v, want North Field", got.Location)
	}
	if got.Summary != nil {
		t.Errorf("Summary = %q, want nil", *got.Summary)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestSave_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	store.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, created, err := store.Save(ctx, sampleReading(0), 80, SaveOptions{})
	if err != nil || !created {
		t.Fatalf("first Save: created=%v err=%v", created, err)
	}

	second, created, err := store.Save(ctx, sampleReading(0), 12, SaveOptions{Summary: strPtr("later summary")})
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if created {
		t.Error("created = true on duplicate, want false")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate ID = %d, want %d", second.ID, first.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("duplicate CreatedAt = %v, want %v", second.CreatedAt, first.CreatedAt)
	}
	if second.HealthScore != 80 {
		t.Errorf("duplicate HealthScore = %v, want 80", second.HealthScore)
	}
	if second.Summary != nil {
		t.Errorf("duplicate Summary = %q, want nil", *second.Summary)
	}

	count, err := store.Count(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestSave_ConcurrentSameReading(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]bool, workers)
	ids := make([]int64, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, created, err := store.Save(ctx, sampleReading(0), 75, SaveOptions{})
			errs[i] = err
			results[i] = created
			if rec != nil {
				ids[i] = rec.ID
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i] {
			winners++
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d saw id %d, want %d", i, ids[i], ids[0])
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestList_Pagination(t *testing.T) {
	store := setupTestStore(t)
	store.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		rec, _, err := store.Save(ctx, sampleReading(float64(i)), 50, SaveOptions{})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	page1, err := store.List(ctx, ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List page1: %v", err)
	}
	page2, err := store.List(ctx, ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List page2: %v", err)
	}

	got := append(page1, page2...)
	want := []int64{ids[4], ids[3], ids[2], ids[1]}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("record %d ID = %d, want %d", i, got[i].ID, want[i])
		}
		if i > 0 && got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("record %d is newer than record %d", i, i-1)
		}
	}

	tail, err := store.List(ctx, ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 1 || tail[0].ID != ids[0] {
		t.Errorf("tail = %+v, want only oldest record", tail)
	}
}

func TestList_SameTimestampOrdersByID(t *testing.T) {
	store := setupTestStore(t)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := store.Save(ctx, sampleReading(float64(i)), 50, SaveOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := store.List(ctx, ListOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].ID > recs[i-1].ID {
			t.Errorf("ids not descending: %d after %d", recs[i].ID, recs[i-1].ID)
		}
	}
}

func TestList_LocationFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	locations := []*string{strPtr("North Field"), strPtr("north orchard"), strPtr("South Paddock"), nil}
	for i, loc := range locations {
		if _, _, err := store.Save(ctx, sampleReading(float64(i)), 50, SaveOptions{Location: loc}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		filter string
		want   int
	}{
		{"", 4},
		{"NORTH", 2},
		{"paddock", 1},
		{"field", 1},
		{"east", 0},
	}
	for _, tt := range tests {
		recs, err := store.List(ctx, ListOptions{Location: tt.filter, Limit: 100})
		if err != nil {
			t.Fatalf("List(%q): %v", tt.filter, err)
		}
		if len(recs) != tt.want {
			t.Errorf("List(%q) = %d records, want %d", tt.filter, len(recs), tt.want)
		}
		count, err := store.Count(ctx, tt.filter)
		if err != nil {
			t.Fatalf("Count(%q): %v", tt.filter, err)
		}
		if count != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.filter, count, tt.want)
		}
	}
}

func TestList_InvalidPage(t *testing.T) {
	store := setupTestStore(t)
	for _, opts := range []ListOptions{
		{Limit: 0},
		{Limit: MaxLimit + 1},
		{Limit: 10, Offset: -1},
	} {
		if _, err := store.List(context.Background(), opts); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("List(%+v) err = %v, want ErrInvalidPage", opts, err)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	deleted, err := store.Delete(ctx, 999)
	if err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if deleted {
		t.Error("Delete of missing id = true, want false")
	}

	rec, _, err := store.Save(ctx, sampleReading(0), 50, SaveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	deleted, err = store.Delete(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("Delete = false, want true")
	}
	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}

	// The same reading can be stored again once deleted.
	again, created, err := store.Save(ctx, sampleReading(0), 50, SaveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !created || again.ID == rec.ID {
		t.Errorf("re-save created=%v id=%d, want new record", created, again.ID)
	}
}

func TestCorruptRecord(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.db.Exec(`
		INSERT INTO soil_records (fingerprint, soil_data, created_at, health_score)
		VALUES ('bad', '{"pH": 7', ?, 50)
	`, time.Now().UTC().Format(timeLayout)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec(`
		INSERT INTO soil_records (fingerprint, soil_data, created_at, health_score)
		VALUES ('partial', '{"pH": 7, "EC": 1}', ?, 50)
	`, time.Now().UTC().Format(timeLayout)); err != nil {
		t.Fatal(err)
	}

	_, err := store.List(ctx, ListOptions{Limit: 10})
	var corrupt *CorruptRecordError
	if !errors.As(err, &corrupt) {
		t.Fatalf("List err = %v, want *CorruptRecordError", err)
	}

	_, err = store.Get(ctx, 1)
	if !errors.As(err, &corrupt) || corrupt.ID != 1 {
		t.Errorf("Get(1) err = %v, want corrupt record 1", err)
	}
	_, err = store.Get(ctx, 2)
	if !errors.As(err, &corrupt) || corrupt.ID != 2 {
		t.Errorf("Get(2) err = %v, want corrupt record 2", err)
	}
}

func TestStorageError_Surfaced(t *testing.T) {
	store := setupTestStore(t)
	store.db.Close()

	_, _, err := store.Save(context.Background(), sampleReading(0), 50, SaveOptions{})
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Save on closed db err = %v, want *StorageError", err)
	}
}

func TestRecommendationLog(t *testing.T) {
	store := setupTestStore(t)
	store.now = steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	fp := soil.Fingerprint(sampleReading(0))

	rec := models.Recommendation{Fingerprint: fp, Task: "summary", Model: "llama", Location: strPtr("Farm"), Content: "Soil is healthy."}
	id, err := store.LogRecommendation(ctx, rec)
	if err != nil {
		t.Fatalf("LogRecommendation: %v", err)
	}
	if id == 0 {
		t.Fatal("id = 0, want new entry")
	}

	dup, err := store.LogRecommendation(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if dup != 0 {
		t.Errorf("duplicate id = %d, want 0", dup)
	}

	rec.Task = "crop-suggestion"
	rec.Content = "Grow millet."
	if _, err := store.LogRecommendation(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRecommendations(ctx, fp)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "Grow millet." || got[1].Content != "Soil is healthy." {
		t.Errorf("contents = %q, %q", got[0].Content, got[1].Content)
	}
	if got[1].Location == nil || *got[1].Location != "Farm" {
		t.Errorf("Location = %v, want Farm", got[1].Location)
	}

	other, err := store.GetRecommendations(ctx, "none")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("unknown fingerprint returned %d entries", len(other))
	}
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	v, err := store.MigrationVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", v, len(migrations))
	}
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
	if v, _ := store.MigrationVersion(ctx); v != len(migrations) {
		t.Errorf("MigrationVersion after rerun = %d, want %d", v, len(migrations))
	}
}

func TestMigrate_FreshDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	store := New(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Migrate(ctx); err == nil {
		t.Fatal("expected Migrate to fail with a cancelled context")
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, _, err := store.Save(context.Background(), sampleReading(0), 80, SaveOptions{}); err != nil {
		t.Errorf("Save after migrate: %v", err)
	}
}
