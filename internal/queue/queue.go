// Package queue provides the stable priority queue shared by the load
// scheduler and the thumbnail pipeline.
//
// Lower priority values are served first and equal priorities are served
// in insertion order. An item already queued under a key can have its
// priority raised without being queued twice.
package queue

import "container/heap"

type item[K comparable, V any] struct {
	key      K
	value    V
	priority int
	seq      uint64
	index    int
}

type itemHeap[K comparable, V any] []*item[K, V]

func (h itemHeap[K, V]) Len() int { return len(h) }

func (h itemHeap[K, V]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap[K, V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[K, V]) Push(x any) {
	it := x.(*item[K, V])
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a keyed stable priority queue. It is not safe for concurrent
// use; callers hold their own lock.
type Queue[K comparable, V any] struct {
	heap  itemHeap[K, V]
	byKey map[K]*item[K, V]
	seq   uint64
}

// New creates an empty queue.
func New[K comparable, V any]() *Queue[K, V] {
	return &Queue[K, V]{byKey: make(map[K]*item[K, V])}
}

// Push queues value under key. If key is already queued, its priority is
// lowered to priority when that is sooner, and false is returned.
func (q *Queue[K, V]) Push(key K, value V, priority int) bool {
	if it, ok := q.byKey[key]; ok {
		if priority < it.priority {
			it.priority = priority
			heap.Fix(&q.heap, it.index)
		}
		return false
	}

	it := &item[K, V]{key: key, value: value, priority: priority, seq: q.seq}
	q.seq++
	q.byKey[key] = it
	heap.Push(&q.heap, it)
	return true
}

// Pop removes and returns the soonest item.
func (q *Queue[K, V]) Pop() (K, V, bool) {
	if len(q.heap) == 0 {
		var k K
		var v V
		return k, v, false
	}
	it := heap.Pop(&q.heap).(*item[K, V])
	delete(q.byKey, it.key)
	return it.key, it.value, true
}

// Contains reports whether key is queued.
func (q *Queue[K, V]) Contains(key K) bool {
	_, ok := q.byKey[key]
	return ok
}

// Len returns the number of queued items.
func (q *Queue[K, V]) Len() int {
	return len(q.heap)
}

// Clear drops every item and returns their values in priority order.
func (q *Queue[K, V]) Clear() []V {
	out := make([]V, 0, len(q.heap))
	for len(q.heap) > 0 {
		_, v, _ := q.Pop()
		out = append(out, v)
	}
	return out
}
