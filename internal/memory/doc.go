// Package memory keeps the server inside its container memory limit.
//
// GOMAXPROCS follows cgroup CPU limits on its own, but GOMEMLIMIT does not.
// [ConfigureFromEnv] derives it from the container limit:
//
//   - GOMEMLIMIT: Standard Go variable. If set, it takes precedence.
//   - MEMORY_LIMIT: Container limit in bytes, usually from the Downward API.
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap (default 0.85).
//     SQLite's page cache and mmap are allocated outside the Go heap.
//
// A Kubernetes manifest passes the limit like this:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Backpressure
//
// The replica and the scratch state of a large sync are the main heap
// consumers. A [Monitor] samples the heap and, once usage crosses the
// critical water mark, makes [Monitor.Wait] block until it falls below the
// high water mark. The indexer calls Wait after each committed batch, so a
// sync yields between batches instead of growing the heap further:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	opts := indexer.DefaultOptions()
//	opts.Backpressure = monitor
//
// Without a limit the monitor never pauses.
package memory
