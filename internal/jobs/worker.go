package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker wraps the Asynq server processing the exports queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *zap.Logger
}

// NewWorker constructs a Worker for the export queue.
func NewWorker(redisOpts asynq.RedisClientOpt, exportWorker *ExportWorker, concurrency int, log *zap.Logger) (*Worker, error) {
	if exportWorker == nil {
		return nil, errors.New("jobs: export worker is required")
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	if log == nil {
		log = zap.NewNop()
	}

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueExports: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeAuditExport, exportWorker)

	return &Worker{server: srv, mux: mux, log: log}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
