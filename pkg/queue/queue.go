package queue

import (
	"sync"

	"github.com/sirupsen/logrus"

	"site-auditor/pkg/models"
)

// ThreadSafeQueue is a FIFO work queue with blocking Pop and explicit Close,
// shared between the crawl coordinator and its workers. Breadth-first order
// falls out of FIFO consumption because links are always enqueued at
// depth+1 of the page that discovered them.
type ThreadSafeQueue struct {
	items  []*models.WorkItem
	mu     sync.Mutex
	cond   *sync.Cond // signals waiting workers when an item arrives or the queue closes
	closed bool
	log    *logrus.Entry
}

// NewThreadSafeQueue creates an empty queue.
func NewThreadSafeQueue(log *logrus.Entry) *ThreadSafeQueue {
	q := &ThreadSafeQueue{log: log}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add appends a work item. Items added after Close are dropped.
func (q *ThreadSafeQueue) Add(item *models.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Warnf("Attempted to add item to closed queue: %s", item.URL)
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// Pop retrieves and removes the oldest work item.
// It blocks while the queue is empty until an item is added or the queue is
// closed. Returns the item and true, or nil and false once the queue is
// closed and drained.
func (q *ThreadSafeQueue) Pop() (*models.WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}

	item := q.items[0]
	q.items[0] = nil // avoid holding the record alive
	q.items = q.items[1:]
	return item, true
}

// Close signals that no more items will be added.
func (q *ThreadSafeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}

// Len returns the current number of queued items.
func (q *ThreadSafeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
