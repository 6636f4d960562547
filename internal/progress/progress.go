package progress

import (
	"sync"
	"time"

	"music-library/internal/logging"
)

// Event is one progress report.
type Event struct {
	Name  string
	Level int
	Done  int
	Total int
	ETA   time.Duration
}

// Reporter receives progress events. Reporters must not block; sync
// correctness never depends on them.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// LogReporter writes events up to MaxLevel to the debug log.
type LogReporter struct {
	MaxLevel int
}

// Report implements Reporter.
func (r LogReporter) Report(e Event) {
	if e.Level > r.MaxLevel {
		return
	}
	logging.Debug("progress %s: %d/%d (eta %v)", e.Name, e.Done, e.Total, e.ETA.Round(time.Second))
}

// Deeper levels are reported at most once per throttle interval.
const (
	unthrottledLevels = 1
	throttle          = 250 * time.Millisecond
)

// shared is the state common to all nodes of one tree.
type shared struct {
	mu         sync.Mutex
	reporter   Reporter
	lastReport time.Time
}

// Tree is a node of a hierarchical progress tree. Each node counts the units
// spawned and completed anywhere below it, so any level can answer
// "N of M done". A nil *Tree is a valid no-op.
type Tree struct {
	s      *shared
	parent *Tree
	name   string
	level  int
	start  time.Time
	total  int
	done   int
	ticked bool
}

// New returns the root of a progress tree. reporter may be nil.
func New(name string, reporter Reporter) *Tree {
	return &Tree{
		s:     &shared{reporter: reporter},
		name:  name,
		start: time.Now(),
	}
}

// Spawn creates a child unit of work below t.
func (t *Tree) Spawn(name string) *Tree {
	if t == nil {
		return nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	child := &Tree{
		s:      t.s,
		parent: t,
		name:   name,
		level:  t.level + 1,
		start:  time.Now(),
	}
	for n := t; n != nil; n = n.parent {
		n.total++
	}
	return child
}

// Tick marks t's own unit as completed. Ticking twice has no effect.
func (t *Tree) Tick() {
	if t == nil {
		return
	}
	t.s.mu.Lock()
	if t.ticked {
		t.s.mu.Unlock()
		return
	}
	t.ticked = true
	for n := t.parent; n != nil; n = n.parent {
		n.done++
	}
	event, report := t.eventLocked()
	reporter := t.s.reporter
	t.s.mu.Unlock()

	if report && reporter != nil {
		reporter.Report(event)
	}
}

func (t *Tree) eventLocked() (Event, bool) {
	now := time.Now()
	if t.level > unthrottledLevels && now.Sub(t.s.lastReport) < throttle {
		return Event{}, false
	}
	t.s.lastReport = now

	at := t
	if t.parent != nil {
		at = t.parent
	}
	return Event{
		Name:  t.name,
		Level: t.level,
		Done:  at.done,
		Total: at.total,
		ETA:   at.etaLocked(now),
	}, true
}

// Done returns the number of completed units below t.
func (t *Tree) Done() int {
	if t == nil {
		return 0
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.done
}

// Total returns the number of units spawned below t.
func (t *Tree) Total() int {
	if t == nil {
		return 0
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.total
}

// Level is the nesting depth of t; the root is level 0.
func (t *Tree) Level() int {
	if t == nil {
		return 0
	}
	return t.level
}

// Name returns the node name.
func (t *Tree) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// ETA estimates the remaining time for the units known below t from the
// average time per completed unit.
func (t *Tree) ETA() time.Duration {
	if t == nil {
		return 0
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.etaLocked(time.Now())
}

func (t *Tree) etaLocked(now time.Time) time.Duration {
	if t.done == 0 || t.done >= t.total {
		return 0
	}
	perUnit := now.Sub(t.start) / time.Duration(t.done)
	return perUnit * time.Duration(t.total-t.done)
}
