package scheduler

import (
	"context"
	"fmt"

	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ContractCloser closes a single contract once its grace period is over.
type ContractCloser interface {
	CloseIfDue(ctx context.Context, contractID uuid.UUID) (bool, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	closer ContractCloser
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, closer ContractCloser, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		closer: closer,
		log:    log,
	}

	mux.HandleFunc(TaskContractAutoClose, w.handleContractAutoClose)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleContractAutoClose(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseContractAutoClosePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	contractID, err := uuid.Parse(payload.ContractID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	closed, err := w.closer.CloseIfDue(ctx, contractID)
	if apperr.Is(err, apperr.KindNotFound) {
		w.log.Warn("auto-close skipped, contract gone", "contract_id", payload.ContractID)
		return nil
	}
	if err != nil {
		return err
	}
	if !closed {
		w.log.Debug("auto-close not due", "contract_id", payload.ContractID)
	}
	return nil
}
