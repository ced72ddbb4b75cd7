package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sharetube/party/internal/service/room"
)

type iSweeper interface {
	Sweep(ctx context.Context) (room.SweepResult, error)
}

type Config struct {
	Redis         asynq.RedisClientOpt
	SweepInterval time.Duration
	Concurrency   int
}

// Worker runs the periodic room sweep. The scheduler enqueues one sweep task
// per interval and the server executes it, so with several instances running
// each sweep still happens once.
type Worker struct {
	server        *asynq.Server
	scheduler     *asynq.Scheduler
	sweeper       iSweeper
	sweepInterval time.Duration
	logger        *slog.Logger
}

func New(sweeper iSweeper, cfg *Config, logger *slog.Logger) *Worker {
	logger = logger.With("component", "worker")
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: concurrency,
		Logger:      asynqLogger{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.ErrorContext(ctx, "task failed", "error", err, "task_type", task.Type(), "retries", retried)
		}),
	})

	scheduler := asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   asynqLogger{logger: logger},
	})

	return &Worker{
		server:        server,
		scheduler:     scheduler,
		sweeper:       sweeper,
		sweepInterval: cfg.SweepInterval,
		logger:        logger,
	}
}

func (w *Worker) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRoomSweep, w.handleRoomSweep)

	return mux
}

func (w *Worker) handleRoomSweep(ctx context.Context, _ *asynq.Task) error {
	start := time.Now()
	res, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep rooms: %w", err)
	}

	w.logger.InfoContext(ctx, "rooms swept",
		"pruned_participants", res.Pruned,
		"closed_rooms", res.Closed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Run starts the scheduler and the task server and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.scheduler.Register(
		fmt.Sprintf("@every %s", w.sweepInterval),
		NewRoomSweepTask(),
		asynq.MaxRetry(0),
		asynq.Unique(w.sweepInterval),
		asynq.Timeout(w.sweepInterval),
	); err != nil {
		return fmt.Errorf("failed to register sweep task: %w", err)
	}

	if err := w.server.Start(w.mux()); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	w.logger.InfoContext(ctx, "worker started", "sweep_interval", w.sweepInterval.String())
	<-ctx.Done()

	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("worker stopped")

	return nil
}
