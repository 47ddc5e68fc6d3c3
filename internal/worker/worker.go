// Package worker runs queued document jobs through the pipeline.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/metrics"
	"github.com/JakeFAU/normattiva-catalog/internal/pipeline"
)

// Processor handles one document target.
type Processor interface {
	ProcessDocument(ctx context.Context, target catalog.DocumentTarget) (pipeline.Result, error)
}

// Worker consumes jobs and processes them one at a time. Each worker owns
// its processor, and with it its fetch session.
type Worker struct {
	id        int
	queue     catalog.Queue
	jobStore  catalog.JobStore
	processor Processor
	logger    *zap.Logger
}

// New constructs a Worker.
func New(id int, queue catalog.Queue, jobStore catalog.JobStore, processor Processor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:        id,
		queue:     queue,
		jobStore:  jobStore,
		processor: processor,
		logger:    logger.Named("worker").With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming jobs until the context finishes or the queue is
// closed and drained.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, catalog.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", job.ID))
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job catalog.Job) {
	logger := w.logger.With(zap.String("job_id", job.ID), zap.String("target", job.Target.String()))
	if err := w.jobStore.UpdateJobStatus(ctx, job.ID, catalog.JobStatusRunning, "", 0, catalog.JobCounters{}); err != nil {
		logger.Error("update job status failed", zap.Error(err))
		return
	}

	metrics.IncActiveWorkers()
	start := time.Now()
	res, err := w.processor.ProcessDocument(ctx, job.Target)
	metrics.DecActiveWorkers()

	status, errText := finalStatus(res, err)
	metrics.ObserveDocument(string(status), time.Since(start))
	switch status {
	case catalog.JobStatusFailed:
		logger.Error("document failed", zap.Error(err))
	case catalog.JobStatusNotFound:
		logger.Info("document not found")
	default:
		logger.Info("document done",
			zap.String("status", string(status)),
			zap.Int64("document_id", res.Document.ID),
			zap.Int("rows", res.RowsPersisted),
		)
	}

	if err := w.jobStore.UpdateJobStatus(
		context.WithoutCancel(ctx),
		job.ID,
		status,
		errText,
		res.Document.ID,
		res.Counters(),
	); err != nil {
		logger.Error("final job status update failed", zap.Error(err))
	}
}

func finalStatus(res pipeline.Result, err error) (catalog.JobStatus, string) {
	switch {
	case err == nil && res.Skipped:
		return catalog.JobStatusSkipped, ""
	case err == nil:
		return catalog.JobStatusSucceeded, ""
	case errors.Is(err, catalog.ErrDocumentNotFound):
		return catalog.JobStatusNotFound, err.Error()
	default:
		return catalog.JobStatusFailed, err.Error()
	}
}
