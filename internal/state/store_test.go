package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

const testTarget = "/project/config.xml"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() }) //nolint:errcheck // cleanup is best-effort
	return store
}

func record(t *testing.T, store *Store, target, digest string) {
	t.Helper()
	err := store.RecordRun(Run{
		RunID:  "run-1",
		Target: target,
		Kind:   "manifest",
		Action: "appended",
		Digest: digest,
		Host:   "example.com",
	})
	if err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
}

func TestOpen_CreatesDBAndSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }() //nolint:errcheck // cleanup is best-effort

	var version int
	ctx := context.Background()
	if err := store.db.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

func TestSchemaMigration_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	record(t, store, testTarget, "d1")
	_ = store.Close() //nolint:errcheck // cleanup is best-effort

	store2, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store2.Close() }() //nolint:errcheck // cleanup is best-effort

	if version := store2.getSchemaVersion(); version != 1 {
		t.Errorf("expected version 1 after re-open, got %d", version)
	}

	runs, err := store2.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run after re-open, got %d", len(runs))
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	ranAt := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	want := Run{
		RunID:  "6f1c",
		Target: testTarget,
		Kind:   "entitlements",
		Action: "appended",
		Digest: Digest([]byte("content")),
		Host:   "example.com",
		RanAt:  ranAt,
	}
	if err := store.RecordRun(want); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := store.LatestRun(testTarget)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}

	if got.RunID != want.RunID || got.Kind != want.Kind || got.Action != want.Action || got.Host != want.Host {
		t.Errorf("LatestRun() = %+v, want %+v", got, want)
	}
	if got.Digest != want.Digest {
		t.Errorf("Digest = %q, want %q", got.Digest, want.Digest)
	}
	if !got.RanAt.Equal(ranAt) {
		t.Errorf("RanAt = %v, want %v", got.RanAt, ranAt)
	}
}

func TestLatestRun_NoRecord(t *testing.T) {
	store := newTestStore(t)

	run, err := store.LatestRun("/nowhere.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil, got run ID %d", run.ID)
	}
}

func TestLatestRun_ReturnsNewest(t *testing.T) {
	store := newTestStore(t)

	record(t, store, testTarget, "d1")
	record(t, store, testTarget, "d2")
	record(t, store, "/other.xml", "d3")

	run, err := store.LatestRun(testTarget)
	if err != nil {
		t.Fatal(err)
	}
	if run.Digest != "d2" {
		t.Errorf("expected d2, got %q", run.Digest)
	}
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)

	for range 5 {
		record(t, store, testTarget, "d")
	}

	runs, err := store.ListRuns(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}

	if runs[0].ID < runs[1].ID || runs[1].ID < runs[2].ID {
		t.Error("runs not in reverse chronological order")
	}

	all, err := store.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("ListRuns(0) returned %d runs, want 5", len(all))
	}
}

func TestPrune_PerTarget(t *testing.T) {
	store := newTestStore(t)

	for range 10 {
		record(t, store, testTarget, "d")
	}
	for range 2 {
		record(t, store, "/other.xml", "d")
	}

	if err := store.Prune(3); err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}

	counts := map[string]int{}
	for _, r := range runs {
		counts[r.Target]++
	}

	if counts[testTarget] != 3 {
		t.Errorf("expected 3 runs for %s after prune, got %d", testTarget, counts[testTarget])
	}
	if counts["/other.xml"] != 2 {
		t.Errorf("expected 2 runs for /other.xml after prune, got %d", counts["/other.xml"])
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("a"))
	if len(a) != 64 {
		t.Errorf("Digest length = %d, want 64", len(a))
	}
	if a == Digest([]byte("b")) {
		t.Error("different inputs produced the same digest")
	}
	if a != Digest([]byte("a")) {
		t.Error("Digest is not deterministic")
	}
}
