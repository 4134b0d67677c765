package planning

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"roadmapper/internal/graph"
)

// writeKey identifies one coalesced write stream: a single field on a
// single node.
type writeKey struct {
	nodeID string
	field  string
}

type pendingWrite struct {
	timer *time.Timer
	value json.RawMessage
}

// WriteQueue coalesces rapid field edits into trailing-edge debounced
// store writes. A new enqueue for the same (node, field) discards the
// pending write and restarts the clock, so slider drags issue one
// write, not dozens. Writes are fire-and-forget: failures go to the
// error handler (the UI's save-failed notification), never back to the
// caller, and applied in-memory state is not rolled back.
type WriteQueue struct {
	mu       sync.Mutex
	store    graph.Store
	debounce time.Duration
	logger   *zap.Logger
	onError  func(nodeID, field string, err error)
	pending  map[writeKey]*pendingWrite
	inflight sync.WaitGroup
	closed   bool
}

// NewWriteQueue creates a queue writing to store. A debounce of zero
// or less makes every enqueue write synchronously, which tests and the
// embedded backends use.
func NewWriteQueue(store graph.Store, debounce time.Duration, logger *zap.Logger) *WriteQueue {
	return &WriteQueue{
		store:    store,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[writeKey]*pendingWrite),
	}
}

// SetErrorHandler registers a callback invoked when a flushed write
// fails. The callback may run on a timer goroutine.
func (q *WriteQueue) SetErrorHandler(fn func(nodeID, field string, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onError = fn
}

// Enqueue schedules value to be written to the node's field. A pending
// write for the same key is superseded entirely.
func (q *WriteQueue) Enqueue(nodeID, field string, value json.RawMessage) {
	if q.debounce <= 0 {
		q.write(nodeID, field, value)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	key := writeKey{nodeID: nodeID, field: field}
	if p, ok := q.pending[key]; ok {
		p.timer.Stop()
		delete(q.pending, key)
	}

	p := &pendingWrite{value: value}
	p.timer = time.AfterFunc(q.debounce, func() {
		q.fire(key)
	})
	q.pending[key] = p
}

// fire flushes the pending write for key, if it is still pending.
func (q *WriteQueue) fire(key writeKey) {
	q.mu.Lock()
	p, ok := q.pending[key]
	if !ok {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.inflight.Add(1)
	q.mu.Unlock()

	defer q.inflight.Done()
	q.write(key.nodeID, key.field, p.value)
}

func (q *WriteQueue) write(nodeID, field string, value json.RawMessage) {
	err := q.store.UpdateNode(context.Background(), nodeID, graph.Fields{field: value})
	if err != nil {
		if graph.IsNotFound(err) {
			// The node vanished mid-edit; nothing to save.
			q.logger.Debug("Dropping write for missing node",
				zap.String("node_id", nodeID),
				zap.String("field", field))
			return
		}
		q.logger.Warn("Failed to persist field",
			zap.String("node_id", nodeID),
			zap.String("field", field),
			zap.Error(err))
		q.mu.Lock()
		onError := q.onError
		q.mu.Unlock()
		if onError != nil {
			onError(nodeID, field, err)
		}
	}
}

// Flush writes every pending value immediately and waits for in-flight
// writes to finish. Used at shutdown.
func (q *WriteQueue) Flush() {
	q.mu.Lock()
	keys := make([]writeKey, 0, len(q.pending))
	for key, p := range q.pending {
		p.timer.Stop()
		keys = append(keys, key)
	}
	writes := make(map[writeKey]json.RawMessage, len(keys))
	for _, key := range keys {
		writes[key] = q.pending[key].value
		delete(q.pending, key)
	}
	q.mu.Unlock()

	for key, value := range writes {
		q.write(key.nodeID, key.field, value)
	}
	q.inflight.Wait()
}

// Close flushes pending writes and rejects further enqueues.
func (q *WriteQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Flush()
}
