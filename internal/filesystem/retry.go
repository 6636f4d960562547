package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"music-library/internal/logging"
)

// RetryConfig controls how often an operation failing with ESTALE is
// repeated. Any other error ends the operation at once.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver labels metrics; nil uses the package default.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns 3 retries backing off from 50ms to 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c RetryConfig) volume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Load().Resolve(path)
}

func (c RetryConfig) nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// isNFSStaleError reports whether err is a stale NFS file handle.
func isNFSStaleError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry runs fn until it succeeds, fails with something other than
// ESTALE, or config.MaxRetries retries are used up.
func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (result T, err error) {
	start := time.Now()
	volume := config.volume(path)
	defer func() {
		notify(func(o Observer) { o.ObserveOperation(volume, op, time.Since(start), err) })
	}()

	backoff := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		result, err = fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s of %s recovered after %d retries", op, path, attempt)
				notify(func(o Observer) { o.ObserveRetry(volume, op, RetrySuccess) })
			}
			return result, nil
		}
		if !isNFSStaleError(err) {
			return result, err
		}
		notify(func(o Observer) { o.ObserveRetry(volume, op, RetryStale) })

		if attempt == config.MaxRetries {
			logging.Warn("NFS %s of %s still stale after %d retries: %v", op, path, attempt, err)
			notify(func(o Observer) { o.ObserveRetry(volume, op, RetryFailure) })
			return result, err
		}
		notify(func(o Observer) { o.ObserveRetry(volume, op, RetryBackoff) })
		logging.Debug("NFS %s of %s hit a stale handle, retry %d/%d in %v",
			op, path, attempt+1, config.MaxRetries, backoff)
		time.Sleep(backoff)
		backoff = config.nextBackoff(backoff)
	}
}

// StatWithRetry is os.Stat with stale handle retries. Symlinks are followed.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// LstatWithRetry is os.Lstat with stale handle retries.
func LstatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("lstat", path, config, func() (os.FileInfo, error) {
		return os.Lstat(path)
	})
}

// ReadDirWithRetry is os.ReadDir with stale handle retries. Entries are
// sorted by name.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("readdir", path, config, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}

// EvalSymlinksWithRetry is filepath.EvalSymlinks with stale handle retries.
func EvalSymlinksWithRetry(path string, config RetryConfig) (string, error) {
	return withRetry("readlink", path, config, func() (string, error) {
		return filepath.EvalSymlinks(path)
	})
}
