package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0x6d61/wpleech/internal/slugs"
	"github.com/0x6d61/wpleech/internal/testutil"
)

func TestBuildListCommand_WritesListFile(t *testing.T) {
	dir := testutil.NewDirectoryServer(testutil.SequentialSlugs("plugin", 250))
	defer dir.Close()

	listPath := filepath.Join(t.TempDir(), "plugin_list.txt")
	stdout, _, err := execute(t, "build-list",
		"--registry-url", dir.URL,
		"--plugin-list", listPath,
		"--total", "150",
		"--interval", "0",
	)
	if err != nil {
		t.Fatalf("build-list: %v", err)
	}

	if !strings.Contains(stdout, "Page 2/2: 150 plugins collected") {
		t.Errorf("progress missing:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Wrote 150 plugins to "+listPath) {
		t.Errorf("summary missing:\n%s", stdout)
	}

	got, err := slugs.NewFileProvider(listPath).Slugs(context.Background())
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(got) != 150 || got[0] != "plugin-1" || got[149] != "plugin-150" {
		t.Errorf("list = %d slugs (%v ... )", len(got), got[:min(3, len(got))])
	}
	if dir.Calls() != 2 {
		t.Errorf("directory pages requested = %d, want 2", dir.Calls())
	}
}

func TestBuildListCommand_SlugDatabase(t *testing.T) {
	dir := testutil.NewDirectoryServer(testutil.SequentialSlugs("plugin", 40))
	defer dir.Close()

	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "slugs.db")
	_, _, err := execute(t, "build-list",
		"--registry-url", dir.URL,
		"--plugin-list", filepath.Join(tmp, "plugin_list.txt"),
		"--slug-db", dbPath,
		"--interval", "0",
	)
	if err != nil {
		t.Fatalf("build-list: %v", err)
	}

	store, err := slugs.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	got, err := store.Slugs(ctx)
	if err != nil {
		t.Fatalf("Slugs: %v", err)
	}
	if len(got) != 40 {
		t.Errorf("stored slugs = %d, want 40", len(got))
	}

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != slugs.JobDone || jobs[0].Collected != 40 {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestBuildListCommand_RegistryDown(t *testing.T) {
	dir := testutil.NewDirectoryServer(nil)
	url := dir.URL
	dir.Close()

	_, _, err := execute(t, "build-list",
		"--registry-url", url,
		"--plugin-list", filepath.Join(t.TempDir(), "plugin_list.txt"),
		"--interval", "0",
		"--timeout", "2s",
	)
	if err == nil || !strings.Contains(err.Error(), "plugin list build failed") {
		t.Errorf("err = %v, want build failure", err)
	}
}

func TestBuildListCommand_PrunesOldJobs(t *testing.T) {
	tests := []struct {
		name     string
		extra    []string
		wantJobs int
	}{
		{"default retention", nil, 1},
		{"retention disabled", []string{"--job-retention=0"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.NewDirectoryServer(testutil.SequentialSlugs("plugin", 5))
			defer dir.Close()

			tmp := t.TempDir()
			dbPath := filepath.Join(tmp, "slugs.db")
			ctx := context.Background()

			store, err := slugs.NewSQLiteStore(dbPath)
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			old := time.Now().Add(-60 * 24 * time.Hour)
			err = store.SaveJob(ctx, slugs.JobRecord{
				ID: "old-job", Sort: slugs.SortPopular, Total: 5,
				Status: slugs.JobDone, Collected: 5, StartedAt: old, EndedAt: old.Add(time.Minute),
			})
			store.Close()
			if err != nil {
				t.Fatalf("SaveJob: %v", err)
			}

			args := append([]string{"build-list",
				"--registry-url", dir.URL,
				"--plugin-list", filepath.Join(tmp, "plugin_list.txt"),
				"--slug-db", dbPath,
				"--interval", "0",
			}, tt.extra...)
			if _, _, err := execute(t, args...); err != nil {
				t.Fatalf("build-list: %v", err)
			}

			store, err = slugs.NewSQLiteStore(dbPath)
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			defer store.Close()

			jobs, err := store.ListJobs(ctx)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(jobs) != tt.wantJobs {
				t.Errorf("jobs = %d, want %d (%+v)", len(jobs), tt.wantJobs, jobs)
			}
			if len(jobs) > 0 && jobs[0].ID == "old-job" {
				t.Errorf("newest job is the seeded record: %+v", jobs)
			}
		})
	}
}
