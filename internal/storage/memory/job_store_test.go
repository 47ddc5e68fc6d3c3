package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	job := catalog.Job{ID: "job-1", Status: catalog.JobStatusQueued, Target: catalog.DocumentTarget{Year: 2005, Number: "82"}}

	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate job error")
	}
	if err := store.UpdateJobStatus(ctx, job.ID, catalog.JobStatusRunning, "", 0, catalog.JobCounters{}); err != nil {
		t.Fatalf("UpdateJobStatus running error = %v", err)
	}
	running, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if running.Started == nil || running.Finished != nil {
		t.Fatalf("expected only Started set, got %+v", running)
	}

	err = store.UpdateJobStatus(ctx, job.ID, catalog.JobStatusSucceeded, "", 42, catalog.JobCounters{RowsPersisted: 3})
	if err != nil {
		t.Fatalf("UpdateJobStatus succeeded error = %v", err)
	}
	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != catalog.JobStatusSucceeded || final.Started == nil || final.Finished == nil {
		t.Fatalf("expected timestamps set, got %+v", final)
	}
	if final.DocumentID != 42 || final.Counters.RowsPersisted != 3 {
		t.Fatalf("expected document id and counters to persist, got %+v", final)
	}
}

func TestJobStoreMissingJob(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	if _, err := store.GetJob(context.Background(), "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("GetJob() error = %v, want ErrNotFound", err)
	}
	err := store.UpdateJobStatus(context.Background(), "missing", catalog.JobStatusFailed, "boom", 0, catalog.JobCounters{})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("UpdateJobStatus() error = %v, want ErrNotFound", err)
	}
}
