package scan

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/netopscockpit/cockpit/internal/models"
)

// Registry holds the live scan jobs. Jobs older than the TTL are
// purged on the next access; there is no background reaper.
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	ttl   time.Duration
	clock clockwork.Clock
}

// NewRegistry creates a job registry with the given TTL.
func NewRegistry(ttl time.Duration, clock clockwork.Clock) *Registry {
	return &Registry{
		jobs:  make(map[string]*Job),
		ttl:   ttl,
		clock: clock,
	}
}

// purgeLocked drops expired jobs. Callers hold r.mu.
func (r *Registry) purgeLocked() {
	cutoff := r.clock.Now().Add(-r.ttl)
	for id, job := range r.jobs {
		if job.Created().Before(cutoff) {
			job.markDeleted()
			delete(r.jobs, id)
			slog.Info("purged expired scan job", "job_id", id)
		}
	}
}

// Add registers a new job.
func (r *Registry) Add(job *Job) {
	r.mu.Lock()
	r.purgeLocked()
	r.jobs[job.ID()] = job
	r.mu.Unlock()
}

// Get returns the job with the given id, or nil.
func (r *Registry) Get(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	return r.jobs[id]
}

// Delete drops the job and tombstones it so in-flight workers stop
// mutating it. Returns false when the job is unknown.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job.markDeleted()
	delete(r.jobs, id)
	return true
}

// List returns summaries of all live jobs.
func (r *Registry) List() []models.ScanJobSummary {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	r.purgeLocked()
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	summaries := make([]models.ScanJobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, job.Summary())
	}
	return summaries
}
