package inmemory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// waitForStatus polls the store until the job reaches want or the deadline passes.
func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ExportJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state %+v", jobID, want, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.ExportJob).Result = "gs://bucket/object.csv"
		return nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ExportJob{UserID: "u1", Target: jobs.ExportTargetGCS}
	if err := q.PublishExport(ctx, job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}
	if job.JobID == "" || job.MaxRetries != 3 {
		t.Errorf("Expected defaults to be filled, got %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result != "gs://bucket/object.csv" || done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("Unexpected completed job %+v", done)
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := q.PublishExport(ctx, &jobs.ExportJob{}); err == nil {
		t.Error("Expected publish on a stopped queue to fail")
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("bucket unavailable")
	})

	job := &jobs.ExportJob{UserID: "u1", Target: jobs.ExportTargetGCS, MaxRetries: 2}
	if err := q.PublishExport(ctx, job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || failed.Error != "bucket unavailable" {
		t.Errorf("Unexpected failed job %+v", failed)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	q.Stop(context.Background())
}

func TestQueue_StopWithFullBuffer(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, store)

	if err := q.PublishExport(context.Background(), &jobs.ExportJob{JobID: "first", UserID: "u1"}); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}

	published := make(chan error, 1)
	go func() {
		published <- q.PublishExport(context.Background(), &jobs.ExportJob{JobID: "second", UserID: "u1"})
	}()
	waitForStatus(t, store, "second", jobs.JobStatusPending)

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		stopped <- q.Stop(ctx)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked behind a publisher waiting on a full buffer")
	}

	select {
	case err := <-published:
		if err == nil {
			t.Error("Expected the blocked publish to fail once the queue stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PublishExport() still blocked after Stop()")
	}
}

func TestQueue_RetryAfterStopFailsJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithRetryBackoff(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("bucket unavailable")
	})

	job := &jobs.ExportJob{UserID: "u1", Target: jobs.ExportTargetGCS}
	if err := q.PublishExport(ctx, job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}
	waitForStatus(t, store, job.JobID, jobs.JobStatusRetrying)

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", failed.RetryCount)
	}
	if !strings.Contains(failed.Error, "bucket unavailable") || !strings.Contains(failed.Error, "queue is closed") {
		t.Errorf("Error = %q, want the last failure and the requeue failure", failed.Error)
	}
	if failed.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
}

// flakyStore fails to save jobs in one status.
type flakyStore struct {
	*Store
	failOn jobs.JobStatus
}

func (s *flakyStore) SaveJob(ctx context.Context, job *jobs.ExportJob) error {
	if job.Status == s.failOn {
		return errors.New("disk full")
	}
	return s.Store.SaveJob(ctx, job)
}

func TestQueue_LogsSaveFailures(t *testing.T) {
	store := &flakyStore{Store: NewStore(), failOn: jobs.JobStatusRunning}
	buf := &bytes.Buffer{}
	q := NewQueue(4, store, WithWorkers(1), WithLogger(zerolog.New(buf)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Start(ctx, func(ctx context.Context, job jobs.Job) error { return nil })

	job := &jobs.ExportJob{UserID: "u1", Target: jobs.ExportTargetGCS}
	if err := q.PublishExport(ctx, job); err != nil {
		t.Fatalf("PublishExport() error = %v", err)
	}
	waitForStatus(t, store.Store, job.JobID, jobs.JobStatusCompleted)
	q.Stop(context.Background())

	out := buf.String()
	if !strings.Contains(out, "Failed to save job state") || !strings.Contains(out, "disk full") {
		t.Errorf("Expected the save failure to be logged, got %s", out)
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []jobs.ExportJob{
		{JobID: "a", UserID: "u1", Status: jobs.JobStatusCompleted},
		{JobID: "b", UserID: "u1", Status: jobs.JobStatusFailed},
		{JobID: "c", UserID: "u2", Status: jobs.JobStatusCompleted},
		{JobID: "d", UserID: "u1", Status: jobs.JobStatusCompleted},
	} {
		j := j
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveJob(ctx, &j); err != nil {
			t.Fatalf("SaveJob() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"by user newest first", jobs.JobFilter{UserID: "u1"}, []string{"d", "b", "a"}},
		{"by status", jobs.JobFilter{UserID: "u1", Status: jobs.JobStatusCompleted}, []string{"d", "a"}},
		{"paged", jobs.JobFilter{UserID: "u1", Limit: 1, Offset: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
	if err := store.SaveJob(ctx, &jobs.ExportJob{}); err == nil {
		t.Error("Expected error for a job without id")
	}
}
