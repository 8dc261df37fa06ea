// Package sequencer buffers events arriving out of order in a min-heap
// keyed by EventID and releases them to a handler in strict EventID
// order, discarding duplicates.
package sequencer

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

// Handler applies one released event. A non-nil error aborts the release
// (the caller's transaction rolls back) and the Sequencer does not
// advance past it — the event is dropped from memory and the publisher
// is expected to redeliver it.
type Handler func(ctx context.Context, event domain.Event) error

// LastReleasedFunc reports the current lastReleased boundary: the
// maximum event_id across all four log tables.
type LastReleasedFunc func(ctx context.Context) (int64, error)

// eventHeap is a min-heap of pending events ordered by EventID.
type eventHeap []domain.Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].EventID < h[j].EventID }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(domain.Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Sequencer holds the pending-event heap. Intake requests may arrive
// concurrently, so Admit serializes them itself: the processor behind
// the handler is a single logical writer.
type Sequencer struct {
	mu           sync.Mutex
	heap         eventHeap
	handler      Handler
	lastReleased LastReleasedFunc
	logger       *slog.Logger
}

// New creates a Sequencer that forwards released events to handler and
// derives lastReleased via fn.
func New(handler Handler, fn LastReleasedFunc, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{handler: handler, lastReleased: fn, logger: logger.With("component", "sequencer")}
	heap.Init(&s.heap)
	return s
}

// Admit places event into the release pipeline, then releases in order
// every event whose EventID equals lastReleased+1.
func (s *Sequencer) Admit(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.lastReleased(ctx)
	if err != nil {
		return fmt.Errorf("lastReleased: %w", err)
	}

	if event.EventID == h+1 {
		if err := s.release(ctx, event); err != nil {
			return err
		}
		h++
	} else if event.EventID > h {
		heap.Push(&s.heap, event)
	}
	// event.EventID <= h here would be a duplicate of an id already
	// released before this Admit call; it is simply not pushed.

	return s.drain(ctx, h)
}

// drain pops and discards ids <= h (duplicates), then pops and releases
// the contiguous run starting at h+1, re-evaluating h after each release.
func (s *Sequencer) drain(ctx context.Context, h int64) error {
	for s.heap.Len() > 0 && s.heap[0].EventID <= h {
		heap.Pop(&s.heap)
	}
	for s.heap.Len() > 0 && s.heap[0].EventID == h+1 {
		next := heap.Pop(&s.heap).(domain.Event)
		if err := s.release(ctx, next); err != nil {
			return err
		}
		h++
		for s.heap.Len() > 0 && s.heap[0].EventID <= h {
			heap.Pop(&s.heap)
		}
	}
	return nil
}

// release forwards event to the handler. A handler error is logged and
// returned; the caller's store transaction has already rolled back by
// the time this returns, so lastReleased has not advanced and the event
// is simply dropped — the publisher is expected to redeliver it.
func (s *Sequencer) release(ctx context.Context, event domain.Event) error {
	if err := s.handler(ctx, event); err != nil {
		s.logger.Warn("event apply failed, dropping from release pipeline", "event_id", event.EventID, "error", err)
		return err
	}
	return nil
}

// Pending returns the number of events currently buffered in the heap,
// waiting for a gap to close.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}
