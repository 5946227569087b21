package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"poptrack/storage"
)

// ParseError reports a malformed CSV line. It poisons the whole in-flight
// chunk the line belongs to: that chunk is rejected and logged, and the
// import continues with subsequent chunks.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %q: %v", e.Line, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Result summarizes one bulk import run.
type Result struct {
	Lines        int // non-blank lines read from the input
	Rows         int // rows actually persisted
	FailedChunks int // chunks rejected (malformed line or store failure)
}

// Failed reports whether any chunk was lost.
func (r Result) Failed() bool { return r.FailedChunks > 0 }

// Importer reads CSV lines and writes them to the store in chunks of at
// most BatchSize rows. Chunk inserts are dispatched concurrently while
// scanning continues; every outstanding insert is awaited before Run
// returns, so completion ordering across chunks is not guaranteed - only
// that all were attempted.
type Importer struct {
	Store     storage.Store
	BatchSize int
	Log       *zap.Logger
}

// Run imports every line of r. A malformed line (fewer than 3 fields, an
// unparsable timestamp or an unparsable count) rejects its whole chunk
// before any row of it is sent; earlier chunks keep their effect and later
// chunks are still attempted. Run returns an error only when the input
// itself cannot be read.
func (im *Importer) Run(ctx context.Context, r io.Reader) (Result, error) {
	var (
		res Result
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	chunk := make([]storage.Sample, 0, im.BatchSize)
	raw := make([]string, 0, im.BatchSize) // kept verbatim for failure logging
	var chunkErr error                     // first malformed line poisons the chunk

	dispatch := func(samples []storage.Sample, lines []string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := im.Store.InsertBatch(ctx, samples); err != nil {
				im.Log.Error("import chunk failed", zap.Error(err), zap.Strings("chunk", lines))
				mu.Lock()
				res.FailedChunks++
				mu.Unlock()
				return
			}
			mu.Lock()
			res.Rows += len(samples)
			mu.Unlock()
		}()
	}

	flush := func() {
		if len(raw) == 0 {
			return
		}
		if chunkErr != nil {
			im.Log.Error("rejecting malformed csv chunk", zap.Error(chunkErr), zap.Strings("chunk", raw))
			mu.Lock()
			res.FailedChunks++
			mu.Unlock()
		} else {
			dispatch(chunk, raw)
		}
		chunk = make([]storage.Sample, 0, im.BatchSize)
		raw = make([]string, 0, im.BatchSize)
		chunkErr = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		// ignore blank lines (useful if the file has a trailing newline)
		if line == "" {
			continue
		}
		res.Lines++
		raw = append(raw, line)

		if chunkErr == nil {
			smp, err := parseLine(line)
			if err != nil {
				chunkErr = err
			} else {
				chunk = append(chunk, smp)
			}
		}

		if len(raw) == im.BatchSize {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		wg.Wait()
		return res, fmt.Errorf("read csv: %w", err)
	}

	flush() // remainder
	wg.Wait()

	im.Log.Info("import complete",
		zap.Int("lines", res.Lines),
		zap.Int("rows", res.Rows),
		zap.Int("failed_chunks", res.FailedChunks),
	)
	return res, nil
}

// parseLine splits one CSV line into a sample. At least 3 fields are
// required; extra fields are ignored. The timestamp field accepts any
// format dateparse recognizes, not just our own export layout.
func parseLine(line string) (storage.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return storage.Sample{}, &ParseError{Line: line, Err: fmt.Errorf("expected at least 3 fields, got %d", len(fields))}
	}

	ts, err := dateparse.ParseAny(strings.TrimSpace(fields[0]))
	if err != nil {
		return storage.Sample{}, &ParseError{Line: line, Err: fmt.Errorf("timestamp: %w", err)}
	}
	servers, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return storage.Sample{}, &ParseError{Line: line, Err: fmt.Errorf("servers: %w", err)}
	}
	players, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return storage.Sample{}, &ParseError{Line: line, Err: fmt.Errorf("players: %w", err)}
	}

	return storage.Sample{Servers: servers, Players: players, Timestamp: ts}, nil
}
