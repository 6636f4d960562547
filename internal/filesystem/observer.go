package filesystem

import (
	"sync/atomic"
	"time"
)

// RetryEvent is one step of the stale file handle retry loop.
type RetryEvent string

const (
	RetryStale   RetryEvent = "stale"   // an attempt failed with ESTALE
	RetryBackoff RetryEvent = "backoff" // sleeping before the next attempt
	RetrySuccess RetryEvent = "success" // an attempt after a stale one worked
	RetryFailure RetryEvent = "failure" // retries exhausted
)

// RetryEvents lists every RetryEvent, for pre-registering metric labels.
var RetryEvents = []RetryEvent{RetryStale, RetryBackoff, RetrySuccess, RetryFailure}

// Observer receives filesystem measurements. The metrics package provides
// the Prometheus implementation, which keeps this package free of metric
// imports.
type Observer interface {
	// ObserveOperation is called once per call of a *WithRetry helper with
	// its total duration including retries.
	ObserveOperation(volume, op string, d time.Duration, err error)
	ObserveRetry(volume, op string, event RetryEvent)
}

type observerBox struct{ Observer }

var current atomic.Pointer[observerBox]

// SetObserver installs o for all later operations. nil disables recording.
func SetObserver(o Observer) {
	current.Store(&observerBox{o})
}

func notify(fn func(Observer)) {
	if b := current.Load(); b != nil && b.Observer != nil {
		fn(b.Observer)
	}
}
