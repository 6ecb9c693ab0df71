package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

type TaskItem struct {
	Task   Task
	Traits TaskTraits
}

// TaskQueue is the ready queue a TaskScheduler hands work out of.
type TaskQueue interface {
	// Push appends a task. It returns false when the queue is at capacity.
	Push(t Task, traits TaskTraits) bool
	Pop() (TaskItem, bool)
	Len() int
	Cap() int
	IsEmpty() bool
	Clear()
}

// FIFOTaskQueue is a slice-backed FIFO. A capacity of zero means unbounded.
type FIFOTaskQueue struct {
	mu       sync.Mutex
	tasks    []TaskItem
	capacity int
}

// NewFIFOTaskQueue returns an unbounded queue.
func NewFIFOTaskQueue() *FIFOTaskQueue {
	return NewBoundedFIFOTaskQueue(0)
}

// NewBoundedFIFOTaskQueue returns a queue refusing pushes beyond capacity.
func NewBoundedFIFOTaskQueue(capacity int) *FIFOTaskQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &FIFOTaskQueue{
		tasks:    make([]TaskItem, 0, defaultQueueCap),
		capacity: capacity,
	}
}

func (q *FIFOTaskQueue) Push(t Task, traits TaskTraits) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.tasks) >= q.capacity {
		return false
	}
	q.tasks = append(q.tasks, TaskItem{Task: t, Traits: traits})
	return true
}

func (q *FIFOTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return TaskItem{}, false
	}

	item := q.tasks[0]
	// Release the reference held by the backing array
	q.tasks[0] = TaskItem{}
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()

	return item, true
}

// maybeCompactLocked reallocates once the live window is a small fraction of the backing array.
func (q *FIFOTaskQueue) maybeCompactLocked() {
	n, c := len(q.tasks), cap(q.tasks)
	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]TaskItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}
	shrunk := make([]TaskItem, n, max(c/2, defaultQueueCap, n))
	copy(shrunk, q.tasks)
	q.tasks = shrunk
}

func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Cap returns the configured bound, 0 when unbounded.
func (q *FIFOTaskQueue) Cap() int {
	return q.capacity
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear drops every queued task and releases the references.
func (q *FIFOTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make([]TaskItem, 0, defaultQueueCap)
}
