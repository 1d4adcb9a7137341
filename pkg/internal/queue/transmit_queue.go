package queue

import (
	"container/heap"
	"sync"
	"time"
)

// Item represents a scheduled transmit queue entry
type Item struct {
	Value    interface{} // The frame or message to send
	Priority int         // Priority (higher = more important)
	SendAt   time.Time   // Earliest time this item may be sent
	Index    int         // Index in the heap

	// Push order, used as the final tiebreaker so items with equal send
	// time and priority leave in FIFO order
	seq uint64
}

// TransmitQueue schedules items by send time, then priority. It carries
// inter-frame pacing: items pushed with a future SendAt are held back until
// that time passes.
type TransmitQueue struct {
	items   itemHeap
	nextSeq uint64
	mu      sync.Mutex
}

// NewTransmitQueue creates a new transmit queue
func NewTransmitQueue() *TransmitQueue {
	q := &TransmitQueue{
		items: make(itemHeap, 0),
	}
	heap.Init(&q.items)
	return q
}

// Push adds an item to the queue
func (q *TransmitQueue) Push(value interface{}, priority int, sendAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := &Item{
		Value:    value,
		Priority: priority,
		SendAt:   sendAt,
		seq:      q.nextSeq,
	}
	q.nextSeq++
	heap.Push(&q.items, item)
}

// Pop removes and returns the front item regardless of its send time
func (q *TransmitQueue) Pop() interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}

	item := heap.Pop(&q.items).(*Item)
	return item.Value
}

// Peek returns the front item without removing it
func (q *TransmitQueue) Peek() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}

	return q.items[0]
}

// NextReady removes and returns the front item if its send time has passed,
// nil otherwise
func (q *TransmitQueue) NextReady(now time.Time) interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}

	item := q.items[0]
	if now.Before(item.SendAt) {
		return nil
	}

	item = heap.Pop(&q.items).(*Item)
	return item.Value
}

// Len returns the number of items in the queue
func (q *TransmitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Clear removes all items
func (q *TransmitQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make(itemHeap, 0)
	heap.Init(&q.items)
}

// itemHeap implements heap.Interface
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	// First by send time (earlier wins)
	if h[i].SendAt.Before(h[j].SendAt) {
		return true
	}
	if h[j].SendAt.Before(h[i].SendAt) {
		return false
	}
	// Then by priority (higher wins)
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	// Then FIFO
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].Index = i
	h[j].Index = j
}

func (h *itemHeap) Push(x interface{}) {
	item := x.(*Item)
	item.Index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*h = old[0 : n-1]
	return item
}
