package metrics

import (
	"time"

	"music-library/internal/filesystem"
)

type filesystemObserver struct{}

// NewFilesystemObserver returns the observer that feeds the filesystem
// metrics. Install it with filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveOperation(volume, op string, d time.Duration, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, op).Observe(d.Seconds())
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, op).Inc()
	}
}

func (filesystemObserver) ObserveRetry(volume, op string, event filesystem.RetryEvent) {
	FilesystemRetryEvents.WithLabelValues(volume, op, string(event)).Inc()
}
