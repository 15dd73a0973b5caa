package slugs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/0x6d61/wpleech/internal/transport"
)

// Sort is a WordPress.org plugin directory browse mode.
type Sort string

const (
	SortPopular  Sort = "popular"
	SortNew      Sort = "new"
	SortUpdated  Sort = "updated"
	SortTopRated Sort = "top-rated"
)

// ErrInvalidSort is returned for an unknown browse mode.
var ErrInvalidSort = errors.New("slugs: invalid sort mode")

// ParseSort validates s. An empty string means SortPopular.
func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortPopular, nil
	case SortPopular, SortNew, SortUpdated, SortTopRated:
		return Sort(s), nil
	}
	return "", fmt.Errorf("%w: %q (supported: popular, new, updated, top-rated)", ErrInvalidSort, s)
}

const (
	// DefaultRegistryURL is the WordPress.org API base.
	DefaultRegistryURL = "https://api.wordpress.org"

	// PerPage is the page size requested from query_plugins (API maximum).
	PerPage = 100

	// DefaultTotal is the list size built when none is given.
	DefaultTotal = 1000

	// DefaultPageInterval spaces directory page requests.
	DefaultPageInterval = 300 * time.Millisecond
)

// JobStatus is the lifecycle state of a build job.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Finished reports whether s is a terminal state.
func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobFailed || s == JobCanceled
}

// JobEventType distinguishes job events.
type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
)

// JobEvent is a status change or progress update of a build job.
type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress
	Page      int `json:"page,omitempty"`
	Pages     int `json:"pages,omitempty"`
	Collected int `json:"collected,omitempty"`
}

// Job is a background list build. Its events channel is closed when the
// job finishes, after which Done is closed.
type Job struct {
	ID    string
	Sort  Sort
	Total int

	mu        sync.Mutex
	status    JobStatus
	collected int
	err       string
	startedAt time.Time
	endedAt   time.Time
	entries   []Entry

	events chan JobEvent
	done   chan struct{}
	cancel context.CancelFunc
}

// Events returns the job's event stream.
func (j *Job) Events() <-chan JobEvent {
	return j.events
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done. It returns the job's
// failure, if any.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	rec := j.Snapshot()
	switch rec.Status {
	case JobFailed:
		return fmt.Errorf("slugs: build job %s failed: %s", j.ID, rec.Error)
	case JobCanceled:
		return fmt.Errorf("slugs: build job %s canceled: %w", j.ID, context.Canceled)
	}
	return nil
}

// Cancel stops the job.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// Entries returns the built list once the job is done.
func (j *Job) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries
}

// Snapshot returns the current state of the job.
func (j *Job) Snapshot() JobRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobRecord{
		ID:        j.ID,
		Sort:      j.Sort,
		Total:     j.Total,
		Status:    j.status,
		Collected: j.collected,
		Error:     j.err,
		StartedAt: j.startedAt,
		EndedAt:   j.endedAt,
	}
}

func (j *Job) emit(ev JobEvent) {
	ev.JobID = j.ID
	// Non-blocking send; drop if buffer is full.
	select {
	case j.events <- ev:
	default:
	}
}

// Builder collects plugin slugs from the WordPress.org plugin directory and
// publishes the result to a Sink.
type Builder struct {
	client  transport.Client
	baseURL string
	limiter *rate.Limiter
	sink    Sink
	store   *SQLiteStore
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegistryURL overrides DefaultRegistryURL.
func WithRegistryURL(u string) BuilderOption {
	return func(b *Builder) {
		if u != "" {
			b.baseURL = u
		}
	}
}

// WithLimiter replaces the page request limiter.
func WithLimiter(l *rate.Limiter) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.limiter = l
		}
	}
}

// WithJobStore persists job records in store.
func WithJobStore(store *SQLiteStore) BuilderOption {
	return func(b *Builder) {
		b.store = store
	}
}

// WithBuilderLogger sets the structured logger.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a builder publishing to sink (may be nil).
func NewBuilder(client transport.Client, sink Sink, opts ...BuilderOption) *Builder {
	b := &Builder{
		client:  client,
		baseURL: DefaultRegistryURL,
		limiter: rate.NewLimiter(rate.Every(DefaultPageInterval), 1),
		sink:    sink,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		jobs:    make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// queryPluginsResponse is the subset of query_plugins we read.
type queryPluginsResponse struct {
	Info struct {
		Page    int `json:"page"`
		Pages   int `json:"pages"`
		Results int `json:"results"`
	} `json:"info"`
	Plugins []Entry `json:"plugins"`
}

// Build pages through the directory until total slugs are collected or a
// page comes back empty. Pages that fail or return non-200 are skipped.
// onPage, if set, is called after every collected page. Only context
// cancellation is returned as an error.
func (b *Builder) Build(ctx context.Context, mode Sort, total int, onPage func(page, pages, collected int)) ([]Entry, error) {
	if total <= 0 {
		total = DefaultTotal
	}
	pages := (total + PerPage - 1) / PerPage

	var entries []Entry
	seen := make(map[string]bool)

	for page := 1; page <= pages; page++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("slugs: build canceled: %w", err)
		}

		resp, err := b.client.Do(ctx, transport.Get(b.pageURL(mode, page)))
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("slugs: build canceled: %w", ctx.Err())
			}
			b.logger.Warn("plugin directory request failed", "page", page, "error", err)
			continue
		}
		if !resp.OK() {
			b.logger.Warn("plugin directory page skipped", "page", page, "status", resp.StatusCode)
			continue
		}

		var data queryPluginsResponse
		if err := json.Unmarshal(resp.Body, &data); err != nil {
			b.logger.Warn("plugin directory page undecodable", "page", page, "error", err)
			continue
		}
		if len(data.Plugins) == 0 {
			b.logger.Info("no more plugins in directory", "page", page)
			break
		}

		for _, p := range data.Plugins {
			if p.Slug == "" || seen[p.Slug] {
				continue
			}
			seen[p.Slug] = true
			entries = append(entries, p)
		}
		b.logger.Debug("plugin directory page fetched", "page", page, "pages", pages, "collected", len(entries))
		if onPage != nil {
			onPage(page, pages, min(len(entries), total))
		}

		if len(entries) >= total {
			break
		}
	}

	if len(entries) > total {
		entries = entries[:total]
	}
	return entries, nil
}

func (b *Builder) pageURL(mode Sort, page int) string {
	params := url.Values{}
	params.Set("action", "query_plugins")
	params.Set("request[page]", strconv.Itoa(page))
	params.Set("request[per_page]", strconv.Itoa(PerPage))
	params.Set("request[browse]", string(mode))
	params.Set("request[fields][active_installs]", "1")
	return b.baseURL + "/plugins/info/1.2/?" + params.Encode()
}

func (b *Builder) publish(ctx context.Context, entries []Entry) error {
	if b.sink == nil {
		return nil
	}
	if len(entries) == 0 {
		return fmt.Errorf("slugs: refusing to publish an empty list")
	}
	if err := b.sink.Publish(ctx, entries); err != nil {
		return fmt.Errorf("slugs: publish list: %w", err)
	}
	return nil
}

// Start launches a build job in the background. The job outlives ctx's
// cancellation; stop it with Job.Cancel.
func (b *Builder) Start(ctx context.Context, mode Sort, total int) (*Job, error) {
	mode, err := ParseSort(string(mode))
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		total = DefaultTotal
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &Job{
		ID:        uuid.New().String(),
		Sort:      mode,
		Total:     total,
		status:    JobPending,
		startedAt: time.Now().UTC(),
		events:    make(chan JobEvent, 64),
		done:      make(chan struct{}),
		cancel:    cancel,
	}

	b.mu.Lock()
	b.jobs[job.ID] = job
	b.mu.Unlock()

	job.emit(JobEvent{Type: JobEventStatus, Status: JobPending})
	b.persist(jobCtx, job)

	go b.run(jobCtx, job)

	return job, nil
}

func (b *Builder) run(ctx context.Context, job *Job) {
	defer func() {
		job.cancel()
		close(job.events)
		close(job.done)
	}()

	b.setStatus(ctx, job, JobRunning, "")
	b.logger.Info("plugin list build started", "job", job.ID, "sort", job.Sort, "total", job.Total)

	entries, err := b.Build(ctx, job.Sort, job.Total, func(page, pages, collected int) {
		job.mu.Lock()
		job.collected = collected
		job.mu.Unlock()
		job.emit(JobEvent{Type: JobEventProgress, Page: page, Pages: pages, Collected: collected})
	})
	if err == nil {
		err = b.publish(ctx, entries)
	}

	switch {
	case ctx.Err() != nil:
		b.setStatus(context.WithoutCancel(ctx), job, JobCanceled, ctx.Err().Error())
	case err != nil:
		b.logger.Error("plugin list build failed", "job", job.ID, "error", err)
		b.setStatus(ctx, job, JobFailed, err.Error())
	default:
		job.mu.Lock()
		job.entries = entries
		job.collected = len(entries)
		job.mu.Unlock()
		b.logger.Info("plugin list build finished", "job", job.ID, "collected", len(entries))
		b.setStatus(ctx, job, JobDone, "")
	}
}

func (b *Builder) setStatus(ctx context.Context, job *Job, status JobStatus, errMsg string) {
	job.mu.Lock()
	job.status = status
	job.err = errMsg
	if status.Finished() {
		job.endedAt = time.Now().UTC()
	}
	job.mu.Unlock()

	job.emit(JobEvent{Type: JobEventStatus, Status: status, Error: errMsg})
	b.persist(ctx, job)
}

func (b *Builder) persist(ctx context.Context, job *Job) {
	if b.store == nil {
		return
	}
	if err := b.store.SaveJob(ctx, job.Snapshot()); err != nil {
		b.logger.Warn("could not persist build job", "job", job.ID, "error", err)
	}
}

// Get returns the in-process job with the given ID, or nil.
func (b *Builder) Get(id string) *Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jobs[id]
}

// Record returns the state of a job, consulting the job store for jobs from
// earlier processes. It returns (nil, nil) if the job is unknown.
func (b *Builder) Record(ctx context.Context, id string) (*JobRecord, error) {
	if job := b.Get(id); job != nil {
		rec := job.Snapshot()
		return &rec, nil
	}
	if b.store == nil {
		return nil, nil
	}
	return b.store.LoadJob(ctx, id)
}

// Records lists known jobs, most recent first.
func (b *Builder) Records(ctx context.Context) ([]JobRecord, error) {
	b.mu.Lock()
	live := make(map[string]JobRecord, len(b.jobs))
	for id, job := range b.jobs {
		live[id] = job.Snapshot()
	}
	b.mu.Unlock()

	var out []JobRecord
	if b.store != nil {
		stored, err := b.store.ListJobs(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range stored {
			if l, ok := live[rec.ID]; ok {
				rec = l
				delete(live, rec.ID)
			}
			out = append(out, rec)
		}
	}
	for _, rec := range live {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []JobRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].StartedAt.After(recs[j].StartedAt)
	})
}
