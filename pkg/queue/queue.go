// Package queue dispatches scan jobs through asynq so that long-running
// scans execute in the worker process, off the API path. Scan status is
// mirrored into redis for cheap polling.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/docuvault/docscan/internal/models"
)

// Task types handled by the scan worker.
const (
	TaskTypeScanRun   = "scan:run"
	TaskTypeScanRetry = "scan:retry-failed"
)

// QueueName is the single asynq queue used for scan jobs. The scheduler
// admits one active scan, so one queue with concurrency 1 is enough.
const QueueName = "scans"

const statusTTL = 24 * time.Hour

// Queue 队列接口
type Queue interface {
	Enqueue(ctx context.Context, task *ScanTask) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
	Close() error
}

// ScanTask is the payload carried through the queue. Options are snapshotted
// at enqueue time so a config change never alters an in-flight scan.
type ScanTask struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Options   models.ScanOptions `json:"options"`
	CreatedAt time.Time          `json:"createdAt"`
}

// TaskStatus 任务状态
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	State      string    `json:"state,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
}

// Config 队列配置
type Config struct {
	RedisAddr   string
	RedisDB     int
	ScanTimeout time.Duration
}

// NewAsynqQueue 创建队列实例
func NewAsynqQueue(cfg *Config) (*AsynqQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
	}, nil
}

// Enqueue 将扫描任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *ScanTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal scan task: %w", err)
	}

	timeout := 2 * time.Hour
	opts := []asynq.Option{
		asynq.Queue(QueueName),
		asynq.TaskID(task.ID),
		// A crashed scan resumes from its checkpoint on the next explicit
		// start; asynq-level retry would restart it blindly.
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	}

	t := asynq.NewTask(task.Type, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue scan task: %w", err)
	}
	return nil
}

// GetTaskStatus 获取任务状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	key := statusKey(taskID)
	data, err := q.redis.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	info, err := q.inspector.GetTaskInfo(QueueName, taskID)
	if err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	return convertAsynqStatus(info), nil
}

// CancelTask 取消排队中的任务
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	if err := q.inspector.DeleteTask(QueueName, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	return nil
}

// SaveFinalStatus 保存最终任务状态
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (q *AsynqQueue) Close() error {
	q.inspector.Close()
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}

func statusKey(taskID string) string {
	return fmt.Sprintf("scan_status:%s", taskID)
}

func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.Status = "failed"
		status.Error = info.LastErr
	default:
		status.Status = "unknown"
	}
	return status
}
