// Package listener consumes inbound loan submissions from a Redis stream
// and hands each valid application to the scheduler. Consumption is
// at-least-once via a consumer group; duplicate deliveries are absorbed
// by the scheduler's deterministic workflow IDs.
package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"loanflow/internal/domain"
)

// readBlock bounds each XREADGROUP call so the loop notices context
// cancellation promptly.
const readBlock = 5 * time.Second

// Submitter schedules one loan evaluation per accepted event.
type Submitter interface {
	Submit(ctx context.Context, event domain.ApplicationEvent) (string, error)
}

// Listener consumes loan submissions from a Redis stream consumer group.
type Listener struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string

	submitter Submitter
	logger    zerolog.Logger
}

// New creates a Listener for the given stream and consumer group. The
// consumer name is unique per process so parallel workers share the
// group without stealing each other's pending entries.
func New(client *redis.Client, stream, group string, submitter Submitter, logger zerolog.Logger) *Listener {
	return &Listener{
		client:    client,
		stream:    stream,
		group:     group,
		consumer:  "loanflow-" + uuid.NewString()[:8],
		submitter: submitter,
		logger:    logger.With().Str("component", "listener").Logger(),
	}
}

// Run consumes submissions until the context is cancelled or the broker
// becomes unreachable. Malformed messages are logged, acknowledged and
// skipped; only broker failures stop the loop.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.ensureGroup(ctx); err != nil {
		return err
	}
	l.logger.Info().
		Str("stream", l.stream).
		Str("group", l.group).
		Str("consumer", l.consumer).
		Msg("listening for loan submissions")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    l.group,
			Consumer: l.consumer,
			Streams:  []string{l.stream, ">"},
			Count:    16,
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read submission stream %s: %w", l.stream, err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				l.handle(ctx, msg)
			}
		}
	}
}

// ensureGroup creates the consumer group if it does not exist yet.
func (l *Listener) ensureGroup(ctx context.Context) error {
	err := l.client.XGroupCreateMkStream(ctx, l.stream, l.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", l.group, l.stream, err)
	}
	return nil
}

// handle parses, submits and acknowledges one stream entry. Every entry
// is acknowledged exactly once: invalid payloads are dead on arrival and
// redelivering them cannot help, and failed submissions are logged and
// dropped rather than wedging the group's pending list.
func (l *Listener) handle(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := l.client.XAck(ctx, l.stream, l.group, msg.ID).Err(); err != nil {
			l.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to ack submission")
		}
	}()

	event, err := parseSubmission(msg)
	if err != nil {
		l.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("invalid loan submission, skipping")
		return
	}

	if _, err := l.submitter.Submit(ctx, event); err != nil {
		l.logger.Error().Err(err).
			Str("loan_id", event.LoanID).
			Str("message_id", msg.ID).
			Msg("failed to schedule loan evaluation")
	}
}

// parseSubmission extracts and validates the application event carried
// by one stream entry.
func parseSubmission(msg redis.XMessage) (domain.ApplicationEvent, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return domain.ApplicationEvent{}, fmt.Errorf("submission %s has no payload field", msg.ID)
	}
	return domain.ParseApplicationEvent([]byte(payload))
}

// Close releases the underlying Redis connection.
func (l *Listener) Close() error {
	return l.client.Close()
}
