package slugs

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:) returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	if store.db == nil {
		t.Fatal("NewSQLiteStore(:memory:) db field is nil")
	}
}

func TestSQLiteStore_PublishAndSlugs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Empty store yields an empty list, not an error.
	got, err := store.Slugs(ctx)
	if err != nil {
		t.Fatalf("Slugs on empty store returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Slugs on empty store = %v", got)
	}

	entries := []Entry{
		{Slug: "woocommerce", Name: "WooCommerce", Version: "8.6.1", ActiveInstalls: 5000000},
		{Slug: "akismet", Name: "Akismet", Version: "5.3.1", ActiveInstalls: 6000000},
		{Slug: "akismet", Name: "duplicate"},
		{Slug: "classic-editor"},
	}
	if err := store.Publish(ctx, entries); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	got, err = store.Slugs(ctx)
	if err != nil {
		t.Fatalf("Slugs returned error: %v", err)
	}
	want := []string{"woocommerce", "akismet", "classic-editor"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Slugs() = %v, want %v", got, want)
	}

	full, err := store.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if full[0] != entries[0] {
		t.Errorf("Entries()[0] = %+v, want %+v", full[0], entries[0])
	}

	// A second publish replaces the list.
	if err := store.Publish(ctx, []Entry{{Slug: "jetpack"}}); err != nil {
		t.Fatalf("second Publish returned error: %v", err)
	}
	got, _ = store.Slugs(ctx)
	if !reflect.DeepEqual(got, []string{"jetpack"}) {
		t.Errorf("after republish Slugs() = %v", got)
	}
}

func TestSQLiteStore_Jobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	rec := JobRecord{
		ID:        "job-1",
		Sort:      SortPopular,
		Total:     300,
		Status:    JobRunning,
		StartedAt: started,
	}
	if err := store.SaveJob(ctx, rec); err != nil {
		t.Fatalf("SaveJob returned error: %v", err)
	}

	loaded, err := store.LoadJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("LoadJob returned error: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadJob returned nil")
	}
	if loaded.Status != JobRunning || loaded.Total != 300 || loaded.Sort != SortPopular {
		t.Errorf("loaded = %+v", loaded)
	}
	if !loaded.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, started)
	}
	if !loaded.EndedAt.IsZero() {
		t.Errorf("EndedAt = %v, want zero", loaded.EndedAt)
	}

	rec.Status = JobDone
	rec.Collected = 300
	rec.EndedAt = started.Add(time.Minute)
	if err := store.SaveJob(ctx, rec); err != nil {
		t.Fatalf("SaveJob update returned error: %v", err)
	}
	loaded, _ = store.LoadJob(ctx, "job-1")
	if loaded.Status != JobDone || loaded.Collected != 300 {
		t.Errorf("updated record = %+v", loaded)
	}
	if !loaded.EndedAt.Equal(rec.EndedAt) {
		t.Errorf("EndedAt = %v, want %v", loaded.EndedAt, rec.EndedAt)
	}

	missing, err := store.LoadJob(ctx, "nope")
	if err != nil {
		t.Fatalf("LoadJob(missing) returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("LoadJob(missing) = %+v, want nil", missing)
	}
}

func TestSQLiteStore_ListAndCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recs := []JobRecord{
		{ID: "old", Sort: SortNew, Total: 100, Status: JobDone, StartedAt: now.Add(-48 * time.Hour)},
		{ID: "recent", Sort: SortUpdated, Total: 100, Status: JobDone, StartedAt: now.Add(-time.Hour)},
	}
	for _, r := range recs {
		if err := store.SaveJob(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "recent" || list[1].ID != "old" {
		t.Fatalf("ListJobs() = %+v", list)
	}

	deleted, err := store.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Cleanup deleted %d, want 1", deleted)
	}
	list, _ = store.ListJobs(ctx)
	if len(list) != 1 || list[0].ID != "recent" {
		t.Errorf("after Cleanup ListJobs() = %+v", list)
	}
}
