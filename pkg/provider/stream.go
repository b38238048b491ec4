// pkg/provider/stream.go

package provider

import (
	"context"
	"sync"
)

// Stream delivers chat chunks as the upstream produces them. Consumers
// range over Chunks; the channel is closed after the terminal chunk
// (done or error). Close abandons the stream and releases the producer.
type Stream struct {
	ch     chan ChatChunk
	cancel context.CancelFunc
	once   sync.Once
}

// newStream derives a cancelable context for the producer goroutine and
// returns the stream bound to it.
func newStream(parent context.Context) (*Stream, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Stream{
		ch:     make(chan ChatChunk, 16),
		cancel: cancel,
	}, ctx
}

// Chunks returns the receive side of the stream.
func (s *Stream) Chunks() <-chan ChatChunk {
	return s.ch
}

// Close cancels the producer. Safe to call more than once and after the
// stream has already finished. Pending chunks may still be buffered.
func (s *Stream) Close() {
	s.cancel()
}

// emit sends one chunk unless the consumer has gone away. Returns false
// when the producer should stop.
func (s *Stream) emit(ctx context.Context, c ChatChunk) bool {
	select {
	case s.ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish terminates the stream with a done chunk carrying final usage.
func (s *Stream) finish(ctx context.Context, usage *Usage) {
	s.once.Do(func() {
		s.emit(ctx, ChatChunk{Type: ChunkDone, Usage: usage})
		close(s.ch)
		s.cancel()
	})
}

// fail terminates the stream with an error chunk. Context cancellation is
// reported like any other failure so consumers see a terminal chunk.
func (s *Stream) fail(ctx context.Context, err error) {
	s.once.Do(func() {
		s.emit(ctx, ChatChunk{Type: ChunkError, Err: err.Error()})
		close(s.ch)
		s.cancel()
	})
}
