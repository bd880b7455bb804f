package scan

import (
	"sync"
	"time"

	"github.com/netopscockpit/cockpit/internal/models"
)

// Job is the in-memory record of one discovery run. Counters and
// results are mutated only under mu; a deleted job becomes a tombstone
// that in-flight workers observe before every mutation.
type Job struct {
	mu sync.Mutex

	id            string
	created       time.Time
	cidrs         []string
	credentialIDs []int64
	mode          models.DiscoveryMode

	totalTargets       int
	scanned            int
	alive              int
	authenticated      int
	unreachable        int
	authFailed         int
	driverNotSupported int

	state   models.ScanState
	results []models.ScanResult
	errors  []string
	deleted bool
}

func newJob(id string, created time.Time, cidrs []string, credentialIDs []int64, mode models.DiscoveryMode, totalTargets int) *Job {
	return &Job{
		id:            id,
		created:       created,
		cidrs:         cidrs,
		credentialIDs: credentialIDs,
		mode:          mode,
		totalTargets:  totalTargets,
		state:         models.ScanStateRunning,
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Created returns the job creation time.
func (j *Job) Created() time.Time { return j.created }

// markDeleted turns the job into a tombstone.
func (j *Job) markDeleted() {
	j.mu.Lock()
	j.deleted = true
	j.mu.Unlock()
}

// mutate runs fn under the job lock unless the job was deleted.
// Returns false when the mutation was dropped.
func (j *Job) mutate(fn func()) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.deleted {
		return false
	}
	fn()
	return true
}

func (j *Job) markUnreachable() {
	j.mutate(func() {
		j.unreachable++
		j.scanned++
	})
}

func (j *Job) markAlive() {
	j.mutate(func() { j.alive++ })
}

// markAuthenticated appends the single result for ip and advances the
// counters. The caller guarantees at most one call per ip.
func (j *Job) markAuthenticated(result models.ScanResult) {
	j.mutate(func() {
		j.results = append(j.results, result)
		j.authenticated++
		j.scanned++
	})
}

func (j *Job) markAuthFailed() {
	j.mutate(func() {
		j.authFailed++
		j.scanned++
	})
}

func (j *Job) markDriverNotSupported() {
	j.mutate(func() {
		j.driverNotSupported++
		j.scanned++
	})
}

// finish transitions the job to its terminal state, recording any
// run-level errors.
func (j *Job) finish(errs ...string) {
	j.mutate(func() {
		j.state = models.ScanStateFinished
		j.errors = append(j.errors, errs...)
	})
}

// Status returns a consistent snapshot of the job.
func (j *Job) Status() models.ScanJobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	results := make([]models.ScanResult, len(j.results))
	copy(results, j.results)
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)

	return models.ScanJobStatus{
		JobID:   j.id,
		State:   j.state,
		Created: j.created,
		Progress: models.ScanProgress{
			TotalTargets:       j.totalTargets,
			Scanned:            j.scanned,
			Alive:              j.alive,
			Authenticated:      j.authenticated,
			Unreachable:        j.unreachable,
			AuthFailed:         j.authFailed,
			DriverNotSupported: j.driverNotSupported,
		},
		Results: results,
		Errors:  errs,
	}
}

// Summary returns the active-jobs listing row.
func (j *Job) Summary() models.ScanJobSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return models.ScanJobSummary{
		JobID:         j.id,
		State:         j.state,
		Created:       j.created,
		TotalTargets:  j.totalTargets,
		Authenticated: j.authenticated,
	}
}

// Result returns the recorded result for ip, if any.
func (j *Job) Result(ip string) (models.ScanResult, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range j.results {
		if r.IP == ip {
			return r, true
		}
	}
	return models.ScanResult{}, false
}
