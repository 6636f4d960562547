/*
Package workers sizes goroutine pools in containerized environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the
container's CPU limit. Pool sizes are derived from GOMAXPROCS:

	// stat up to 16 directories at once on a slow network mount
	g, ctx := workers.IOGroup(ctx, 16)

Set FS_WORKERS to pin the count, for example to 1 on a mount that does not
tolerate parallel requests. The override is still capped by the limit.
*/
package workers
