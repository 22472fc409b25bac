package urmp

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeClock drives a scheduler deterministically in tests.
type fakeClock struct {
	ms int64
}

func (f *fakeClock) now() int64           { return f.ms }
func (f *fakeClock) advance(d int64)      { f.ms += d }
func (f *fakeClock) install(s *scheduler) { s.now = f.now }

func TestSchedulerRunsDueEventsInOrder(t *testing.T) {
	clock := &fakeClock{}
	s := newScheduler()
	clock.install(s)

	var order []string
	s.schedule(30*time.Millisecond, func() { order = append(order, "c") })
	s.schedule(10*time.Millisecond, func() { order = append(order, "a") })
	s.schedule(20*time.Millisecond, func() { order = append(order, "b") })

	clock.advance(15)
	s.tick()
	clock.advance(20)
	s.tick()

	want := []string{"a", "b", "c"}
	if !cmp.Equal(order, want) {
		t.Error(cmp.Diff(want, order))
	}
}

func TestSchedulerFIFOTieBreak(t *testing.T) {
	clock := &fakeClock{}
	s := newScheduler()
	clock.install(s)

	var order []int
	for i := 0; i < 8; i++ {
		i := i
		s.schedule(10*time.Millisecond, func() { order = append(order, i) })
	}

	clock.advance(10)
	s.tick()

	want := []int{0, 1, 2, 3, 4, 5, 6, 7}
	if !cmp.Equal(order, want) {
		t.Error(cmp.Diff(want, order))
	}
}

func TestSchedulerNeverRunsEventsScheduledDuringTick(t *testing.T) {
	clock := &fakeClock{}
	s := newScheduler()
	clock.install(s)

	var fired []string
	s.schedule(0, func() {
		fired = append(fired, "outer")
		// Due immediately, but must wait for the next tick.
		s.schedule(0, func() { fired = append(fired, "inner") })
	})

	s.tick()
	want := []string{"outer"}
	if !cmp.Equal(fired, want) {
		t.Error(cmp.Diff(want, fired))
	}

	s.tick()
	want = []string{"outer", "inner"}
	if !cmp.Equal(fired, want) {
		t.Error(cmp.Diff(want, fired))
	}
}

func TestSchedulerClear(t *testing.T) {
	clock := &fakeClock{}
	s := newScheduler()
	clock.install(s)

	fired := false
	s.schedule(10*time.Millisecond, func() { fired = true })
	s.clear()

	clock.advance(1000)
	for i := 0; i < 5; i++ {
		s.tick()
	}
	if fired {
		t.Fatal("cleared event fired")
	}
	if s.pending() != 0 {
		t.Fatalf("pending = %d after clear", s.pending())
	}
}

func TestSchedulerNotDueYet(t *testing.T) {
	clock := &fakeClock{}
	s := newScheduler()
	clock.install(s)

	fired := false
	s.schedule(100*time.Millisecond, func() { fired = true })

	clock.advance(99)
	s.tick()
	if fired {
		t.Fatal("event fired before its due time")
	}
	clock.advance(1)
	s.tick()
	if !fired {
		t.Fatal("event did not fire at its due time")
	}
}
