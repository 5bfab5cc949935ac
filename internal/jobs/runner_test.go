package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rawblock/itemset-engine/pkg/models"
)

func waitForStatus(t *testing.T, r *Runner, id string, want string) models.MiningJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := r.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := r.Get(id)
	t.Fatalf("job %s stuck in %s, want %s", id, job.Status, want)
	return models.MiningJob{}
}

func TestRunnerCompletesJob(t *testing.T) {
	exec := func(req *models.MiningRequest, abort *atomic.Bool) (*models.MiningResult, error) {
		return &models.MiningResult{Count: 3}, nil
	}
	var broadcasts atomic.Int32
	r := NewRunner(exec, func([]byte) { broadcasts.Add(1) }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	job := r.Submit(models.MiningRequest{})
	done := waitForStatus(t, r, job.ID, models.JobCompleted)
	if done.Result == nil || done.Result.Count != 3 {
		t.Fatalf("result not recorded: %+v", done)
	}
	if done.StartTime == nil || done.EndTime == nil {
		t.Error("start/end times must be set")
	}
	if broadcasts.Load() < 2 {
		t.Errorf("expected running+completed broadcasts, got %d", broadcasts.Load())
	}
}

func TestRunnerRecordsFailure(t *testing.T) {
	exec := func(req *models.MiningRequest, abort *atomic.Bool) (*models.MiningResult, error) {
		return nil, errors.New("bad input")
	}
	r := NewRunner(exec, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	job := r.Submit(models.MiningRequest{})
	failed := waitForStatus(t, r, job.ID, models.JobFailed)
	if failed.Error != "bad input" {
		t.Errorf("error not recorded: %+v", failed)
	}
}

func TestRunnerAbort(t *testing.T) {
	started := make(chan struct{})
	exec := func(req *models.MiningRequest, abort *atomic.Bool) (*models.MiningResult, error) {
		close(started)
		for !abort.Load() {
			time.Sleep(time.Millisecond)
		}
		return nil, errors.New("mining aborted")
	}
	r := NewRunner(exec, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	job := r.Submit(models.MiningRequest{})
	<-started
	if !r.Abort(job.ID) {
		t.Fatal("Abort must find the running job")
	}
	aborted := waitForStatus(t, r, job.ID, models.JobAborted)
	if aborted.EndTime == nil {
		t.Error("aborted jobs must still record an end time")
	}
}

func TestAbortUnknownJob(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	if r.Abort("nope") {
		t.Error("unknown job must not be abortable")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("unknown job must not be gettable")
	}
}
