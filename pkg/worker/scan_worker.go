package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/docuvault/docscan/internal/service/scan"
	"github.com/docuvault/docscan/pkg/logger"
	"github.com/docuvault/docscan/pkg/queue"
)

// ScanWorker consumes scan jobs from the queue and drives them through the
// scan service. Concurrency stays at 1: the scheduler allows exactly one
// active scan process-wide.
type ScanWorker struct {
	BaseWorker
	service scan.Service
	queue   queue.Queue
}

func NewScanWorker(cfg *Config, svc scan.Service, q queue.Queue, log logger.Logger) (*ScanWorker, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Queues == nil {
		cfg.Queues = map[string]int{queue.QueueName: 1}
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &ScanWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		service: svc,
		queue:   q,
	}
	w.registerHandlers()
	return w, nil
}

func (w *ScanWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeScanRun, w.handleScanRun)
	w.mux.HandleFunc(queue.TaskTypeScanRetry, w.handleScanRetry)
}

func (w *ScanWorker) handleScanRun(ctx context.Context, t *asynq.Task) error {
	var task queue.ScanTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal scan task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal scan task: %w", err)
	}

	w.logger.Info("Running scan task", logger.String("taskId", task.ID))

	status := &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    "running",
		StartedAt: time.Now(),
	}
	w.saveStatus(ctx, status)

	state, err := w.service.RunScan(ctx, task.Options)
	status.State = string(state)
	status.FinishedAt = time.Now()
	if err != nil {
		status.Status = "failed"
		status.Error = err.Error()
		w.saveStatus(ctx, status)
		return err
	}

	status.Status = "completed"
	w.saveStatus(ctx, status)
	return nil
}

func (w *ScanWorker) handleScanRetry(ctx context.Context, t *asynq.Task) error {
	var task queue.ScanTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal retry task: %w", err)
	}

	attempted, recovered, err := w.service.RetryFailed(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("Retry task finished",
		logger.String("taskId", task.ID),
		logger.Int("attempted", attempted),
		logger.Int("recovered", recovered),
	)
	return nil
}

func (w *ScanWorker) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if w.queue == nil {
		return
	}
	if err := w.queue.SaveFinalStatus(ctx, status); err != nil {
		w.logger.Warn("Failed to save task status", logger.Error(err))
	}
}

func (w *ScanWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
