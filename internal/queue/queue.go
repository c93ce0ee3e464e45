// Package queue provides the durable append-only log order submissions travel through.
package queue

import (
	"context"
	"time"
)

// Entry is one queued record with its queue-assigned id.
type Entry struct {
	ID     string
	Fields map[string]string
}

// Queue is an append-only stream readable by any number of independent readers.
type Queue interface {
	Append(ctx context.Context, stream string, fields map[string]string) (string, error)
	// ReadBlocking returns entries after position from, waiting up to timeout for
	// new ones. An empty result means the wait expired.
	ReadBlocking(ctx context.Context, stream, from string, timeout time.Duration, count int64) ([]Entry, error)
	// LastID returns the id of the newest entry, or StartID when the stream is empty.
	LastID(ctx context.Context, stream string) (string, error)
}

// StartID is the position before the first entry of any stream.
const StartID = "0-0"

// TailID asks a reader to start after whatever is newest when it begins.
const TailID = "$"
