package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"healthrisk/internal/condition"
	"healthrisk/internal/ml"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func loadRecord(name condition.Name, status string, at time.Time) ml.ArtifactInfo {
	return ml.ArtifactInfo{
		Condition: name,
		Path:      filepath.Join("trained_models", string(name)+"_model.json"),
		Format:    ml.FormatLinear,
		SHA256:    "abc123",
		LoadedAt:  at,
		Status:    status,
	}
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	c, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	defer c.Close()

	if c.db == nil {
		t.Error("Catalog database is nil")
	}

	dbPath := filepath.Join(tempDir, "healthrisk.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "missing", "dir")

	_, err := New(invalidPath)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestCatalog_Close(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Error closing catalog: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Error closing already closed catalog: %v", err)
	}

	empty := &Catalog{}
	if err := empty.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestCatalog_HistoryNewestFirst(t *testing.T) {
	c := newCatalog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, status := range []string{ml.StatusMissing, ml.StatusFailed, ml.StatusLoaded} {
		if err := c.RecordLoad(loadRecord(condition.Diabetes, status, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("RecordLoad: %v", err)
		}
	}
	// Records for another condition must not leak into the result.
	if err := c.RecordLoad(loadRecord(condition.HeartDisease, ml.StatusLoaded, base)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}

	history, err := c.History(string(condition.Diabetes), 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(history))
	}
	want := []string{ml.StatusLoaded, ml.StatusFailed, ml.StatusMissing}
	for i, r := range history {
		if r.Status != want[i] {
			t.Errorf("record %d: expected status %s, got %s", i, want[i], r.Status)
		}
		if r.Condition != condition.Diabetes {
			t.Errorf("record %d: unexpected condition %s", i, r.Condition)
		}
	}
	if !history[0].LoadedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("unexpected newest timestamp %v", history[0].LoadedAt)
	}
}

func TestCatalog_HistoryLimit(t *testing.T) {
	c := newCatalog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var batch []ml.ArtifactInfo
	for i := 0; i < 5; i++ {
		batch = append(batch, loadRecord(condition.Respiratory, ml.StatusLoaded, base.Add(time.Duration(i)*time.Minute)))
	}
	if err := c.RecordLoads(batch); err != nil {
		t.Fatalf("RecordLoads: %v", err)
	}

	history, err := c.History(string(condition.Respiratory), 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(history))
	}
	if !history[0].LoadedAt.Equal(base.Add(4*time.Minute)) || !history[1].LoadedAt.Equal(base.Add(3*time.Minute)) {
		t.Errorf("unexpected order: %v, %v", history[0].LoadedAt, history[1].LoadedAt)
	}
}

func TestCatalog_HistoryPrefixCollision(t *testing.T) {
	c := newCatalog(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := c.RecordLoad(loadRecord(condition.HeartDisease, ml.StatusLoaded, at)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}

	history, err := c.History("heart", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no records for prefix-only name, got %d", len(history))
	}
}

func TestCatalog_HistoryEmpty(t *testing.T) {
	c := newCatalog(t)

	history, err := c.History(string(condition.BloodPressure), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d records", len(history))
	}
}

func TestCatalog_Latest(t *testing.T) {
	c := newCatalog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []ml.ArtifactInfo{
		loadRecord(condition.Diabetes, ml.StatusFailed, base),
		loadRecord(condition.Diabetes, ml.StatusLoaded, base.Add(time.Hour)),
		loadRecord(condition.BloodPressure, ml.StatusMissing, base),
	}
	if err := c.RecordLoads(records); err != nil {
		t.Fatalf("RecordLoads: %v", err)
	}

	latest, err := c.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(latest))
	}
	if latest[string(condition.Diabetes)].Status != ml.StatusLoaded {
		t.Errorf("Expected newest diabetes record to be loaded, got %s", latest[string(condition.Diabetes)].Status)
	}
	if latest[string(condition.BloodPressure)].Status != ml.StatusMissing {
		t.Errorf("unexpected blood_pressure status %s", latest[string(condition.BloodPressure)].Status)
	}
}

func TestCatalog_RejectsRecordWithoutCondition(t *testing.T) {
	c := newCatalog(t)

	if err := c.RecordLoad(ml.ArtifactInfo{Status: ml.StatusLoaded}); err == nil {
		t.Error("Expected error for record without condition")
	}
}

func TestCatalog_Persistence(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	if err := c.RecordLoad(loadRecord(condition.Diabetes, ml.StatusLoaded, at)); err != nil {
		t.Fatalf("RecordLoad: %v", err)
	}
	c.Close()

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to reopen catalog: %v", err)
	}
	defer reopened.Close()

	history, err := reopened.History(string(condition.Diabetes), 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].SHA256 != "abc123" {
		t.Errorf("unexpected history after reopen: %+v", history)
	}
}
