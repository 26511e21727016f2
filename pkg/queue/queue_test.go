package queue

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-auditor/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewThreadSafeQueue(testLogger())
	q.Add(&models.WorkItem{URL: "a", Depth: 0})
	q.Add(&models.WorkItem{URL: "b", Depth: 1})
	q.Add(&models.WorkItem{URL: "c", Depth: 1})

	for _, want := range []string{"a", "b", "c"} {
		item, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, item.URL)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopBlocksUntilAdd(t *testing.T) {
	q := NewThreadSafeQueue(testLogger())

	done := make(chan string, 1)
	go func() {
		item, ok := q.Pop()
		if ok {
			done <- item.URL
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Add(&models.WorkItem{URL: "late"})

	select {
	case got := <-done:
		assert.Equal(t, "late", got)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up after Add")
	}
}

func TestQueueCloseReleasesAllWaiters(t *testing.T) {
	q := NewThreadSafeQueue(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop()
			assert.False(t, ok)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("waiters not released by Close")
	}
}

func TestQueueAddAfterCloseDropped(t *testing.T) {
	q := NewThreadSafeQueue(testLogger())
	q.Close()
	q.Add(&models.WorkItem{URL: "x"})
	assert.Equal(t, 0, q.Len())

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueDrainsBeforeClosedSignal(t *testing.T) {
	q := NewThreadSafeQueue(testLogger())
	q.Add(&models.WorkItem{URL: "pending"})
	q.Close()

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "pending", item.URL)

	_, ok = q.Pop()
	assert.False(t, ok)
}
