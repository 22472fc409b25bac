package urmp

import (
	"container/heap"
	"sync"
	"time"
)

// delayedEvent is a callback scheduled for an absolute due time on the
// peer's millisecond clock. Immutable once enqueued, consumed exactly once.
type delayedEvent struct {
	dueTime int64
	seq     uint64
	action  func()
}

// scheduler pairs a monotonic millisecond clock with a time-ordered queue
// of delayed events. Ties on dueTime break FIFO by enqueue order so resend
// and heartbeat interleaving stays deterministic.
//
// The queue is mutex-guarded because sends (and therefore resend arming)
// may happen from the transport's receive goroutine as well as from the
// tick goroutine.
type scheduler struct {
	mu    sync.Mutex
	queue eventQueue
	next  uint64
	now   func() int64
}

func newScheduler() *scheduler {
	start := time.Now()
	return &scheduler{
		now: func() int64 { return time.Since(start).Milliseconds() },
	}
}

// currentTime returns milliseconds since the peer started.
func (s *scheduler) currentTime() int64 {
	return s.now()
}

// schedule enqueues action to run delay from now.
func (s *scheduler) schedule(delay time.Duration, action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.queue, &delayedEvent{
		dueTime: s.now() + delay.Milliseconds(),
		seq:     s.next,
		action:  action,
	})
	s.next++
}

// tick samples the clock once and runs every event due at or before that
// instant, in due-time order. Events scheduled while ticking only run on a
// later tick, which bounds the latency of a single pass.
func (s *scheduler) tick() {
	s.mu.Lock()
	now := s.now()
	var due []*delayedEvent
	for s.queue.Len() > 0 && s.queue[0].dueTime <= now {
		due = append(due, heap.Pop(&s.queue).(*delayedEvent))
	}
	s.mu.Unlock()

	for _, ev := range due {
		ev.action()
	}
}

// clear drops every pending event. Nothing scheduled before clear will fire
// afterwards.
func (s *scheduler) clear() {
	s.mu.Lock()
	s.queue = s.queue[:0]
	s.mu.Unlock()
}

func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// eventQueue is a min-heap ordered by dueTime, then enqueue order.
type eventQueue []*delayedEvent

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].dueTime != q[j].dueTime {
		return q[i].dueTime < q[j].dueTime
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*delayedEvent)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	*q = old[:n-1]
	return item
}
