// Package audit wires the audit record infrastructure to its transports
// and exposes the audit emission activity. The production emitter appends
// records to a Redis stream; tests substitute the no-op emitter.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"loanflow/pkg/audit"
)

// StreamEmitter appends audit records to a Redis stream. Entries are
// keyed by the record id and carry the JSON-serialized record, with
// timestamps in ISO-8601 form.
type StreamEmitter struct {
	client redis.Cmdable
	stream string
}

// NewStreamEmitter creates an emitter appending to the named stream.
func NewStreamEmitter(client redis.Cmdable, stream string) *StreamEmitter {
	return &StreamEmitter{client: client, stream: stream}
}

// Append implements audit.Emitter.
func (e *StreamEmitter) Append(ctx context.Context, record audit.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record %s: %w", record.LogID, err)
	}

	err = e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		Values: map[string]any{
			"key":    record.LogID,
			"record": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append audit record %s: %w", record.LogID, err)
	}
	return nil
}
