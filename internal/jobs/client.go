package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/aegisauth/aegis/internal/services"
)

// Client submits export jobs to the queue. It implements
// services.ExportEnqueuer so services only depend on the abstraction.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq-backed job client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs: redis address is required")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueAuditExport hands an export job to the queue and returns its id.
func (c *Client) EnqueueAuditExport(ctx context.Context, job services.ExportJob) (string, error) {
	task, err := NewAuditExportTask(job)
	if err != nil {
		return "", fmt.Errorf("jobs: build export task: %w", err)
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueueExports))
	if err != nil {
		return "", fmt.Errorf("jobs: enqueue export task: %w", err)
	}
	return info.ID, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ services.ExportEnqueuer = (*Client)(nil)
