/*
Package filesystem provides the filesystem calls the diff engine relies on,
wrapped with retry logic for NFS stale file handle errors.

Music libraries frequently live on network mounts. A listing that hits
ESTALE (errno 116) is retried with exponential backoff; every other error is
returned immediately so that the caller can treat a vanished entry as absent.

	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	if err != nil {
	    // directory raced away; the diff engine treats it as empty
	}

Defaults: 3 retries, 50ms initial backoff, 500ms maximum backoff.

Every call reports its duration and each retry step to the Observer set
with SetObserver. Volumes configured with SetDefaultVolumeResolver label
those reports by mount.
*/
package filesystem
