package jobs

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rawblock/itemset-engine/pkg/models"
)

// ExecFunc runs one mining request. The abort flag is owned by the
// runner; setting it makes the engine unwind cooperatively.
type ExecFunc func(req *models.MiningRequest, abort *atomic.Bool) (*models.MiningResult, error)

// JobStore is the subset of the database store the runner needs.
// A nil store disables persistence.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.MiningJob) error
}

// Runner executes queued mining jobs one at a time on a background
// goroutine. Job progress and completion are broadcast as JSON
// payloads (normally into the WebSocket hub) and job state is
// persisted when a store is available.
type Runner struct {
	exec      ExecFunc
	broadcast func([]byte)
	store     JobStore

	mu    sync.Mutex
	jobs  map[string]*jobState
	queue chan string
}

type jobState struct {
	job   models.MiningJob
	abort atomic.Bool
}

// NewRunner creates a job runner. broadcast and store may be nil.
func NewRunner(exec ExecFunc, broadcast func([]byte), store JobStore) *Runner {
	return &Runner{
		exec:      exec,
		broadcast: broadcast,
		store:     store,
		jobs:      make(map[string]*jobState),
		queue:     make(chan string, 256),
	}
}

// Submit enqueues a mining request and returns the job snapshot.
func (r *Runner) Submit(req models.MiningRequest) models.MiningJob {
	st := &jobState{job: models.MiningJob{
		ID:         uuid.NewString(),
		Request:    req,
		Status:     models.JobQueued,
		SubmitTime: time.Now(),
	}}
	r.mu.Lock()
	r.jobs[st.job.ID] = st
	r.mu.Unlock()
	r.persist(&st.job)
	r.queue <- st.job.ID
	return st.job
}

// Get returns a snapshot of a job.
func (r *Runner) Get(id string) (models.MiningJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[id]
	if !ok {
		return models.MiningJob{}, false
	}
	return st.job, true
}

// Abort requests cooperative cancellation of a queued or running job.
func (r *Runner) Abort(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[id]
	if !ok {
		return false
	}
	st.abort.Store(true)
	return true
}

// Run processes the queue until the context is cancelled. A cleanup
// tick drops finished jobs after an hour so the map stays bounded.
func (r *Runner) Run(ctx context.Context) {
	log.Println("[Jobs] Mining job runner started")
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Jobs] Stopping mining job runner...")
			return
		case <-cleanup.C:
			r.dropFinished(time.Hour)
		case id := <-r.queue:
			r.runOne(id)
		}
	}
}

func (r *Runner) runOne(id string) {
	r.mu.Lock()
	st, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if st.abort.Load() {
		st.job.Status = models.JobAborted
		r.mu.Unlock()
		r.announce(&st.job)
		return
	}
	now := time.Now()
	st.job.Status = models.JobRunning
	st.job.StartTime = &now
	r.mu.Unlock()
	r.announce(&st.job)

	res, err := r.exec(&st.job.Request, &st.abort)

	r.mu.Lock()
	end := time.Now()
	st.job.EndTime = &end
	switch {
	case err != nil && st.abort.Load():
		st.job.Status = models.JobAborted
		st.job.Error = err.Error()
	case err != nil:
		st.job.Status = models.JobFailed
		st.job.Error = err.Error()
	default:
		st.job.Status = models.JobCompleted
		st.job.Result = res
	}
	snapshot := st.job
	r.mu.Unlock()

	if err != nil {
		log.Printf("[Jobs] Job %s finished with status %s: %v", id, snapshot.Status, err)
	} else {
		log.Printf("[Jobs] Job %s completed with %d patterns in %s",
			id, snapshot.Result.Count, end.Sub(*snapshot.StartTime))
	}
	r.announce(&snapshot)
}

// announce persists and broadcasts a job state change. The broadcast
// payload omits the result body; clients fetch it over the job API.
func (r *Runner) announce(job *models.MiningJob) {
	r.persist(job)
	if r.broadcast == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":   "mining_job",
		"id":     job.ID,
		"status": job.Status,
		"error":  job.Error,
	})
	if err != nil {
		log.Printf("[Jobs] Failed to marshal job payload: %v", err)
		return
	}
	r.broadcast(payload)
}

func (r *Runner) persist(job *models.MiningJob) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SaveJob(ctx, job); err != nil {
		log.Printf("[Jobs] Warning: failed to persist job %s: %v", job.ID, err)
	}
}

func (r *Runner) dropFinished(age time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, st := range r.jobs {
		done := st.job.Status == models.JobCompleted ||
			st.job.Status == models.JobFailed ||
			st.job.Status == models.JobAborted
		if done && st.job.EndTime != nil && time.Since(*st.job.EndTime) > age {
			delete(r.jobs, id)
		}
	}
}
