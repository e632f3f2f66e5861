package history_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"

	"github.com/JonMunkholm/hospital-bulk/internal/config"
	"github.com/JonMunkholm/hospital-bulk/internal/core"
	"github.com/JonMunkholm/hospital-bulk/internal/history"
)

const (
	testPort     = 15433
	testDB       = "historytest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

// These tests download and start a real PostgreSQL; set HISTORY_PG_TESTS=1 to run them.
func TestMain(m *testing.M) {
	if os.Getenv("HISTORY_PG_TESTS") != "1" {
		fmt.Fprintln(os.Stderr, "SKIP: set HISTORY_PG_TESTS=1 to run history integration tests")
		os.Exit(0)
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

func setupStore(t *testing.T) *history.Store {
	t.Helper()
	ctx := context.Background()

	pool, err := history.NewPool(ctx, config.DatabaseConfig{
		URL:             testDSN,
		MaxConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS import_batches"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if err := history.ApplyMigrations(ctx, pool); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	// A second run must be a no-op.
	if err := history.ApplyMigrations(ctx, pool); err != nil {
		t.Fatalf("re-applying migrations: %v", err)
	}

	return history.NewStore(pool)
}

func sampleRecord(batchID string, completedAt time.Time) core.BatchRecord {
	return core.BatchRecord{
		Report: core.BatchReport{
			BatchID:               batchID,
			TotalHospitals:        2,
			ProcessedHospitals:    2,
			FailedHospitals:       1,
			ProcessingTimeSeconds: 0.42,
			Hospitals: []core.HospitalOutcome{
				{Row: 1, Name: "General Hospital", Status: core.StatusCreated, HospitalID: json.RawMessage("101")},
				{Row: 2, Name: "Eastside Care", Status: core.StatusFailed, Error: "API responded 400: bad request"},
			},
		},
		FileName:    "hospitals.csv",
		IPAddress:   "10.0.0.1",
		UserAgent:   "curl/8.5",
		CompletedAt: completedAt,
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := sampleRecord("batch-1", completed)
	if err := store.RecordBatch(ctx, rec); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}

	got, err := store.Get(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Report.FailedHospitals != 1 || got.Report.TotalHospitals != 2 || got.FileName != "hospitals.csv" {
		t.Errorf("record = %+v", got)
	}
	if !got.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, completed)
	}
	if len(got.Report.Hospitals) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(got.Report.Hospitals))
	}
	if string(got.Report.Hospitals[0].HospitalID) != "101" {
		t.Errorf("hospital_id = %s, want 101", got.Report.Hospitals[0].HospitalID)
	}
	if got.Report.Hospitals[1].Error != "API responded 400: bad request" {
		t.Errorf("error = %q", got.Report.Hospitals[1].Error)
	}
}

func TestStore_RecordIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rec := sampleRecord("batch-dup", time.Now().UTC())
	if err := store.RecordBatch(ctx, rec); err != nil {
		t.Fatalf("first RecordBatch: %v", err)
	}
	rec.FileName = "other.csv"
	if err := store.RecordBatch(ctx, rec); err != nil {
		t.Fatalf("second RecordBatch: %v", err)
	}

	got, err := store.Get(ctx, "batch-dup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FileName != "hospitals.csv" {
		t.Errorf("FileName = %q, want the first copy", got.FileName)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListRecent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := sampleRecord(fmt.Sprintf("batch-%d", i), base.Add(time.Duration(i)*time.Hour))
		if err := store.RecordBatch(ctx, rec); err != nil {
			t.Fatalf("RecordBatch %d: %v", i, err)
		}
	}

	got, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRecent returned %d, want 2", len(got))
	}
	if got[0].BatchID != "batch-2" || got[1].BatchID != "batch-1" {
		t.Errorf("order = %s, %s, want newest first", got[0].BatchID, got[1].BatchID)
	}

	all, err := store.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRecent(0) returned %d, want 3", len(all))
	}
}
