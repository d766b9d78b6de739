// Command worker runs the loan evaluation worker: a Temporal worker
// hosting the workflow and activities, plus the Redis stream listener
// feeding inbound loan submissions into the scheduler.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"loanflow/internal/config"
	"loanflow/internal/listener"
	"loanflow/internal/scheduler"
	"loanflow/internal/worker"
	"loanflow/internal/workflow"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "loanflow-worker").Logger()

	cfg, err := config.Parse()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	zerolog.SetGlobalLevel(cfg.ZerologLevel())

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	temporalClient, err := client.Dial(client.Options{HostPort: cfg.TemporalHostPort})
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	w := sdkworker.New(temporalClient, workflow.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, worker.BuildDependencies(cfg, redisClient))

	routes := workflow.Routes{
		CreditCheckURL:    cfg.CreditCheckURL,
		PropertyCheckURL:  cfg.PropertyCheckURL,
		CreditCountdown:   cfg.RetryCountdown,
		PropertyCountdown: cfg.RetryCountdown,
		DecisionCountdown: cfg.RetryCountdown,
		CallTimeout:       cfg.CallTimeout,
	}
	feed := listener.New(redisClient, cfg.SubmissionStream, cfg.SubmissionGroup,
		scheduler.New(temporalClient, routes, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		err := feed.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	go func() {
		errCh <- w.Run(interruptCh(ctx))
	}()

	logger.Info().
		Str("task_queue", workflow.TaskQueue).
		Str("temporal", cfg.TemporalHostPort).
		Str("submission_stream", cfg.SubmissionStream).
		Msg("loan evaluation worker started")

	// First failure or shutdown signal wins; give the other half a
	// moment to drain before exiting.
	err = <-errCh
	stop()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
	}
	return err
}

// interruptCh adapts the signal context to the channel shape the
// Temporal worker expects for graceful shutdown.
func interruptCh(ctx context.Context) <-chan any {
	ch := make(chan any, 1)
	go func() {
		<-ctx.Done()
		ch <- struct{}{}
	}()
	return ch
}
