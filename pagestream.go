package trino

import (
	"context"
	"sync/atomic"

	"github.com/trinodb/trino-go-client/internal/wire"
)

// Row is one decoded row: values in column order, already converted to
// their host-native representation via DecodeValue.
type Row []any

// PageStream is the single-consumer half of the pipeline: it dequeues
// pages from a PageQueue, decodes each row against the statement's
// column types, and exposes a Rows-style Next/Current iterator.
// Concurrent Next calls are a caller error, matching spec §5's
// exclusivity requirement — only one goroutine may drive a PageStream.
//
// Grounded on the teacher's chunk_downloader.go NextChunk/rows
// iteration, generalized from Arrow-batch decoding to this protocol's
// per-cell type-string decoding.
type PageStream struct {
	queue *PageQueue
	stmt  *StatementClient

	inNext int32 // guards against concurrent Next calls

	columns    []wire.Column
	logicalTyp []LogicalType

	currentPage *wire.Page
	rowIdx      int
	row         Row

	lastStats *wire.Stats
	disposed  bool
}

// NewPageStream constructs a stream over queue, which must already have
// had StartReadAhead called (or be about to).
func NewPageStream(queue *PageQueue, stmt *StatementClient) *PageStream {
	return &PageStream{queue: queue, stmt: stmt}
}

// WaitForColumns blocks until column metadata is available, decoding it
// once into s.columns/s.logicalTyp.
func (s *PageStream) WaitForColumns(ctx context.Context) error {
	if err := s.queue.WaitForColumns(ctx); err != nil {
		return err
	}
	s.adoptColumns(s.queue.Columns())
	return nil
}

// Columns returns the result's column descriptors. Empty until a page
// carrying columns has been observed (see WaitForColumns). Falls back
// to the queue's own tracked columns for discard-result mode, where a
// columns-carrying page is never buffered and so never reaches
// adoptPage.
func (s *PageStream) Columns() []wire.Column {
	if s.columns != nil {
		return s.columns
	}
	return s.queue.Columns()
}

// HasData reports whether any page seen so far has carried at least one
// row (per spec's "empty result set" distinction from "still running").
// Discard-result mode never buffers row data, so it always answers
// false regardless of what the coordinator actually returned.
func (s *PageStream) HasData() bool {
	if s.queue.IsDiscardResults() {
		return false
	}
	return s.queue.HasSeenData()
}

// LastStats returns the most recently observed query-progress snapshot,
// or nil if no page has been consumed yet.
func (s *PageStream) LastStats() *wire.Stats {
	return s.lastStats
}

// LastStatement returns the StatementClient backing this stream, so a
// caller can inspect State() or the session after ReadToEnd/Dispose.
func (s *PageStream) LastStatement() *StatementClient {
	return s.stmt
}

// IsFinished reports whether the stream has no more rows to produce.
// In discard-result mode no page is ever buffered for data, so
// reaching a terminal statement state is itself sufficient; otherwise
// the underlying statement must be terminal AND every buffered page
// fully consumed.
func (s *PageStream) IsFinished() bool {
	if s.currentPage != nil && s.rowIdx < len(s.currentPage.Data) {
		return false
	}
	if s.queue.IsDiscardResults() {
		return s.stmt.State() == StateFinished
	}
	return s.stmt.State() != StateRunning && !s.queue.HasBufferedPage()
}

// Next advances to the next row, decoding it, and reports whether one
// was available. It returns a *ProgrammingError if called concurrently
// with another Next/ReadToEnd on the same stream.
func (s *PageStream) Next(ctx context.Context) (bool, error) {
	if !atomic.CompareAndSwapInt32(&s.inNext, 0, 1) {
		return false, newProgrammingError("PageStream.Next called concurrently")
	}
	defer atomic.StoreInt32(&s.inNext, 0)

	for {
		if s.currentPage != nil && s.rowIdx < len(s.currentPage.Data) {
			raw := s.currentPage.Data[s.rowIdx]
			s.rowIdx++
			row, err := s.decodeRow(raw)
			if err != nil {
				return false, err
			}
			s.row = row
			return true, nil
		}

		if err := s.queue.ThrowIfErrors(); err != nil {
			return false, err
		}

		next := s.queue.DequeueOrNull()
		if next == nil {
			if s.stmt.State() != StateRunning {
				if err := s.queue.ThrowIfErrors(); err != nil {
					return false, err
				}
				return false, nil
			}
			if err := s.queue.WaitForPage(ctx); err != nil {
				return false, err
			}
			continue
		}

		s.adoptPage(next)
	}
}

// Current returns the row last produced by Next.
func (s *PageStream) Current() Row {
	return s.row
}

func (s *PageStream) adoptPage(page *wire.Page) {
	s.currentPage = page
	s.rowIdx = 0
	if page.Stats != nil {
		s.lastStats = page.Stats
	}
	if len(page.Columns) > 0 {
		s.adoptColumns(page.Columns)
	} else {
		// A row-producing query's columns usually arrive on a page with no
		// data, which the queue tracks but never buffers.
		s.adoptColumns(s.queue.Columns())
	}
}

func (s *PageStream) adoptColumns(columns []wire.Column) {
	if len(columns) > 0 && s.columns == nil {
		s.columns = columns
		s.logicalTyp = make([]LogicalType, len(columns))
		for i, col := range columns {
			lt, err := ParseLogicalType(col.Type)
			if err != nil {
				// Column type strings come from the coordinator; a
				// malformed one degrades to an opaque pass-through
				// rather than aborting the whole result set.
				lt = LogicalType{Base: col.Type, Precision: -1, Scale: -1}
			}
			s.logicalTyp[i] = lt
		}
	}
}

func (s *PageStream) decodeRow(raw []any) (Row, error) {
	row := make(Row, len(raw))
	for i, cell := range raw {
		if i >= len(s.columns) {
			row[i] = cell
			continue
		}
		v, err := decodeWithType(cell, s.logicalTyp[i], s.columns[i].Type)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// ReadToEnd drives the stream to completion, invoking fn for every
// decoded row. It stops at the first error fn returns or the stream
// produces.
func (s *PageStream) ReadToEnd(ctx context.Context, fn func(Row) error) error {
	for {
		ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(s.Current()); err != nil {
			return err
		}
	}
}

// Dispose releases the underlying queue and cancels the statement if it
// has not already finished, per spec §5's "abandoning a partially-read
// result must cancel server-side work" requirement.
func (s *PageStream) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.queue.Dispose("stream disposed before exhaustion")
}
