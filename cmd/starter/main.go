// Command starter pushes one loan submission onto the submission stream,
// exercising the same ingestion path production traffic takes. It is a
// development aid for driving evaluations without the upstream loan
// service.
package main

import (
	"context"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"loanflow/internal/domain"
)

type args struct {
	RedisAddr     string `arg:"--redis-addr,env:REDIS_ADDR" default:"localhost:6379" help:"Redis server address"`
	RedisPassword string `arg:"--redis-password,env:REDIS_PASSWORD" default:"" help:"Redis password"`
	Stream        string `arg:"--stream,env:LOAN_SUBMISSION_STREAM" default:"loan.submissions" help:"submission stream name"`
	File          string `arg:"positional,required" help:"path to a JSON loan submission"`
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "loanflow-starter").Logger()

	var a args
	arg.MustParse(&a)

	payload, err := os.ReadFile(a.File)
	if err != nil {
		logger.Fatal().Err(err).Str("file", a.File).Msg("read submission")
	}

	// Validate locally first so malformed submissions fail here instead
	// of being logged and skipped by the listener.
	event, err := domain.ParseApplicationEvent(payload)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid submission")
	}

	client := redis.NewClient(&redis.Options{Addr: a.RedisAddr, Password: a.RedisPassword})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: a.Stream,
		Values: map[string]any{"payload": payload},
	}).Result()
	if err != nil {
		logger.Fatal().Err(err).Msg("append submission")
	}

	logger.Info().
		Str("loan_id", event.LoanID).
		Str("user_id", event.UserID).
		Str("stream", a.Stream).
		Str("message_id", id).
		Msg("loan submission queued")
}
