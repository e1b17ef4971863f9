package dispatch

import (
	"log/slog"
	"sync"
)

// SerialQueue runs submitted work on one goroutine per key, in submission
// order. Different keys run concurrently. A key's goroutine exits once its
// queue drains.
type SerialQueue struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewSerialQueue creates an empty queue.
func NewSerialQueue(logger *slog.Logger) *SerialQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &SerialQueue{queues: make(map[string][]func()), logger: logger}
}

// SenderKey is the ordering key for one sender inside one group.
func SenderKey(groupID, senderID string) string {
	return groupID + "|" + senderID
}

// Submit queues fn behind any pending work for key.
func (q *SerialQueue) Submit(key string, fn func()) {
	q.mu.Lock()
	pending, running := q.queues[key]
	q.queues[key] = append(pending, fn)
	if !running {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !running {
		go q.drain(key)
	}
}

// Pending returns the number of keys with queued or running work.
func (q *SerialQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}

// Wait blocks until every queue has drained.
func (q *SerialQueue) Wait() { q.wg.Wait() }

func (q *SerialQueue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		list := q.queues[key]
		if len(list) == 0 {
			delete(q.queues, key)
			q.mu.Unlock()
			return
		}
		fn := list[0]
		list[0] = nil
		q.queues[key] = list[1:]
		q.mu.Unlock()

		q.run(key, fn)
	}
}

func (q *SerialQueue) run(key string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			q.logger.Error("dispatch.queue_panic", "key", key, "panic", p)
		}
	}()
	fn()
}
