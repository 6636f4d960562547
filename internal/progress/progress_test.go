package progress

import (
	"sync"
	"testing"
)

func TestTreeCounts(t *testing.T) {
	root := New("sync", nil)
	a := root.Spawn("a")
	b := root.Spawn("b")
	a1 := a.Spawn("a1")
	a2 := a.Spawn("a2")

	if got := root.Total(); got != 4 {
		t.Errorf("root.Total() = %d, want 4", got)
	}
	if got := a.Total(); got != 2 {
		t.Errorf("a.Total() = %d, want 2", got)
	}

	a1.Tick()
	a1.Tick() // second tick is ignored
	if got := a.Done(); got != 1 {
		t.Errorf("a.Done() = %d, want 1", got)
	}
	if got := root.Done(); got != 1 {
		t.Errorf("root.Done() = %d, want 1", got)
	}

	a2.Tick()
	a.Tick()
	b.Tick()
	if got := root.Done(); got != root.Total() {
		t.Errorf("root.Done() = %d, want %d", got, root.Total())
	}
	if got := root.ETA(); got != 0 {
		t.Errorf("ETA() of a completed tree = %v, want 0", got)
	}

	if a1.Level() != 2 || a.Level() != 1 || root.Level() != 0 {
		t.Errorf("levels = %d/%d/%d, want 2/1/0", a1.Level(), a.Level(), root.Level())
	}
}

func TestNilTreeIsNoop(t *testing.T) {
	var root *Tree
	child := root.Spawn("child")
	child.Tick()
	if child != nil {
		t.Error("Spawn on nil tree should return nil")
	}
	if root.Done() != 0 || root.Total() != 0 || root.ETA() != 0 || root.Name() != "" {
		t.Error("nil tree accessors should return zero values")
	}
}

func TestReporterReceivesTopLevelEvents(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	root := New("sync", ReporterFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	first := root.Spawn("first")
	second := root.Spawn("second")
	first.Tick()
	second.Tick()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (level-1 events are never throttled)", len(events))
	}
	last := events[1]
	if last.Name != "second" || last.Level != 1 || last.Done != 2 || last.Total != 2 {
		t.Errorf("last event = %+v", last)
	}
}

func TestLogReporterDoesNotPanic(t *testing.T) {
	root := New("sync", LogReporter{MaxLevel: 1})
	root.Spawn("x").Tick()
}
