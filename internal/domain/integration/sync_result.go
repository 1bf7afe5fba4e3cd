package integration

import (
	"sync"
	"time"
)

// DefaultMaxErrorEntries bounds the per-entity messages kept on a SyncRunResult
const DefaultMaxErrorEntries = 100

// SyncFailure is one entity that could not be reconciled
type SyncFailure struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// SyncRunResult summarizes one reconciliation run.
// Methods are safe for concurrent use.
type SyncRunResult struct {
	Family     EntityFamily  `json:"family,omitempty"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Errors     int           `json:"errors"`
	ErrorsList []SyncFailure `json:"errors_list"`
	Pages      int           `json:"pages"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	maxErrors int
	mu        sync.Mutex
}

// NewSyncRunResult creates an empty result for a family
func NewSyncRunResult(family EntityFamily, maxErrors int) *SyncRunResult {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrorEntries
	}
	return &SyncRunResult{
		Family:     family,
		ErrorsList: make([]SyncFailure, 0),
		StartedAt:  time.Now(),
		maxErrors:  maxErrors,
	}
}

// RecordCreated counts an inserted entity
func (r *SyncRunResult) RecordCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Created++
}

// RecordUpdated counts an updated entity
func (r *SyncRunResult) RecordUpdated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updated++
}

// RecordError counts a failed entity; the message list is capped
func (r *SyncRunResult) RecordError(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors++
	if len(r.ErrorsList) < r.limit() {
		r.ErrorsList = append(r.ErrorsList, SyncFailure{Key: key, Message: err.Error()})
	}
}

// RecordPage counts a processed page
func (r *SyncRunResult) RecordPage() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pages++
}

// Merge folds another result into this one
func (r *SyncRunResult) Merge(other *SyncRunResult) {
	if other == nil {
		return
	}
	other.mu.Lock()
	created, updated, errs, pages := other.Created, other.Updated, other.Errors, other.Pages
	failures := append([]SyncFailure(nil), other.ErrorsList...)
	other.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Created += created
	r.Updated += updated
	r.Errors += errs
	r.Pages += pages
	for _, f := range failures {
		if len(r.ErrorsList) >= r.limit() {
			break
		}
		r.ErrorsList = append(r.ErrorsList, f)
	}
}

// Finish stamps the end time
func (r *SyncRunResult) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// Processed returns the number of entities seen
func (r *SyncRunResult) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Created + r.Updated + r.Errors
}

// Duration returns how long the run took
func (r *SyncRunResult) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *SyncRunResult) limit() int {
	if r.maxErrors <= 0 {
		return DefaultMaxErrorEntries
	}
	return r.maxErrors
}

// SyncRun is the persisted summary of a finished run (the error list is not kept)
type SyncRun struct {
	Family     EntityFamily
	Created    int
	Updated    int
	Errors     int
	Pages      int
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    string
}

// Summary converts a result into its persisted summary
func (r *SyncRunResult) Summary() SyncRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return SyncRun{
		Family:     r.Family,
		Created:    r.Created,
		Updated:    r.Updated,
		Errors:     r.Errors,
		Pages:      r.Pages,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
