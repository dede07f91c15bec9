package batch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrJobNotFound is returned when a job id is unknown or its entry has
// already been evicted.
var ErrJobNotFound = errors.New("job not found")

// Registry is the process-wide table of job id → progress. The runner
// writes through a Handle; pollers read value snapshots. Terminal
// entries are evicted after the retention period so the map does not
// grow for the life of the process.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*entry
	keep    time.Duration
	purgeIv time.Duration
}

// entry pairs one job's mutable progress with its own lock, so two jobs
// never contend with each other and the registry lock is held only for
// map access.
type entry struct {
	mu         sync.Mutex
	progress   Progress
	cancelled  bool
	terminalAt time.Time
}

// NewRegistry creates a registry whose terminal entries live for keep
// after completion. A purge goroutine runs for the process lifetime.
func NewRegistry(keep time.Duration) *Registry {
	r := &Registry{
		jobs:    make(map[uuid.UUID]*entry),
		keep:    keep,
		purgeIv: time.Minute,
	}
	go r.purgeLoop()
	return r
}

// newRegistryNoPurge is used by tests that drive purge() directly.
func newRegistryNoPurge(keep time.Duration) *Registry {
	return &Registry{jobs: make(map[uuid.UUID]*entry), keep: keep}
}

// Register creates the entry for a new job and returns its write handle.
// Called by the service before the job is enqueued, so pollers can find
// the job the moment its id is returned to the caller.
func (r *Registry) Register(jobID uuid.UUID, initial Progress) *Handle {
	e := &entry{progress: initial}
	if e.progress.Errors == nil {
		e.progress.Errors = []UnitError{}
	}
	if e.progress.StartedAt.IsZero() {
		e.progress.StartedAt = time.Now()
	}

	r.mu.Lock()
	r.jobs[jobID] = e
	r.mu.Unlock()

	return &Handle{entry: e}
}

// Snapshot returns a value copy of the job's current progress.
func (r *Registry) Snapshot(jobID uuid.UUID) (Progress, error) {
	r.mu.RLock()
	e, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return Progress{}, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.progress
	snap.Errors = append([]UnitError(nil), e.progress.Errors...)
	return snap, nil
}

// Handle returns the write handle for an existing job (used by the
// worker pool, which receives only the job id on the queue).
func (r *Registry) Handle(jobID uuid.UUID) (*Handle, error) {
	r.mu.RLock()
	e, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return &Handle{entry: e}, nil
}

// Cancel flags a job for cancellation. The runner honors the flag at the
// next per-unit boundary; cancelling an already-terminal job is a no-op.
func (r *Registry) Cancel(jobID uuid.UUID) error {
	r.mu.RLock()
	e, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.progress.Status.Terminal() {
		e.cancelled = true
	}
	return nil
}

func (r *Registry) purgeLoop() {
	ticker := time.NewTicker(r.purgeIv)
	defer ticker.Stop()
	for range ticker.C {
		r.purge(time.Now())
	}
}

// purge drops terminal entries older than the retention period.
func (r *Registry) purge(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, e := range r.jobs {
		e.mu.Lock()
		expired := e.progress.Status.Terminal() && !e.terminalAt.IsZero() && now.Sub(e.terminalAt) > r.keep
		e.mu.Unlock()
		if expired {
			delete(r.jobs, id)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(r.jobs)).Msg("job registry purged")
	}
}

// ── Handle ───────────────────────────────────────────────────────────────────

// Handle is the runner's write access to one job's progress. All
// mutations take the entry lock; counters only ever move forward.
type Handle struct{ entry *entry }

// Cancelled reports whether a cancel request is pending.
func (h *Handle) Cancelled() bool {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	return h.entry.cancelled
}

// StartProcessing transitions Initializing → Processing once the total
// unit count is known.
func (h *Handle) StartProcessing(total int) {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	h.entry.progress.Status = StatusProcessing
	h.entry.progress.Total = total
}

// Advance records one attempted unit: the running counters, the label
// shown to pollers, and whether the unit succeeded.
func (h *Handle) Advance(itemLabel string, succeeded bool) {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	p := &h.entry.progress
	p.Current++
	if succeeded {
		p.Successful++
	}
	p.CurrentItem = itemLabel
	if p.Total > 0 {
		p.Percentage = p.Current * 100 / p.Total
	}
}

// RecordError appends one per-unit failure in observation order.
func (h *Handle) RecordError(product string, variantID int64, message string) {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	h.entry.progress.Errors = append(h.entry.progress.Errors, UnitError{
		Product:   product,
		VariantID: variantID,
		Error:     message,
	})
}

// Finish moves the job to a terminal state and stamps completion data.
func (h *Handle) Finish(status Status, jobErr error) {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	p := &h.entry.progress
	p.Status = status
	now := time.Now()
	p.CompletedAt = &now
	if jobErr != nil {
		p.Error = jobErr.Error()
	}
	p.FinalStats = &FinalStats{
		TotalProcessed:    p.Current,
		SuccessfulUpdates: p.Successful,
		ErrorsCount:       len(p.Errors),
	}
	h.entry.terminalAt = now
}

// snapshot is a test helper mirroring Registry.Snapshot for a handle.
func (h *Handle) snapshot() Progress {
	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()
	snap := h.entry.progress
	snap.Errors = append([]UnitError(nil), h.entry.progress.Errors...)
	return snap
}
