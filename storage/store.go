package storage

import (
	"context"
	"fmt"
	"time"
)

// Sample is a single persisted population observation.
type Sample struct {
	ID        int64     // auto-increment primary key (mostly for internal use)
	Servers   int       // registered game servers at collection time
	Players   int       // connected players at collection time
	Timestamp time.Time // when the sample was taken
}

// Row is one entry of the retention query result. Counts are float64
// because rows older than the retention window are daily means; rounding
// to whole counts happens at render time, not here.
type Row struct {
	Servers   float64
	Players   float64
	Timestamp time.Time
}

// StoreError wraps a storage failure (connectivity, constraint, malformed
// statement). It is fatal to the operation that raised it but must not
// crash sibling operations running in the same fan-out.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// Store abstracts the append-only samples table. Samples are never
// updated - only inserted, queried and (all at once) cleared.
type Store interface {
	// Prepare ensures the samples table exists. Idempotent: calling it on
	// an already-initialized store is a no-op, not an error.
	Prepare(ctx context.Context) error

	// InsertOne inserts a single sample with the timestamp defaulted to
	// the current time (used by the live collection path).
	InsertOne(ctx context.Context, servers, players int) error

	// InsertBatch inserts many samples in one statement with explicit
	// timestamps (used by bulk import). The caller must pre-chunk input
	// to at most the store's batch limit; each chunk is its own atomic
	// unit of durability.
	InsertBatch(ctx context.Context, samples []Sample) error

	// Query returns full-resolution rows for the trailing retention
	// window and one averaged row per calendar day for everything older,
	// merged and sorted ascending by timestamp.
	Query(ctx context.Context, retentionDays int) ([]Row, error)

	// ClearAll deletes every row. Irreversible.
	ClearAll(ctx context.Context) error

	// Count returns the number of persisted samples.
	Count(ctx context.Context) (int64, error)

	// Close releases the underlying connection.
	Close() error
}
