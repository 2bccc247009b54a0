/*
Package filesystem wraps the filesystem calls made by the local file fetch
collaborator, the directory scanner and playlist resolution with retry
logic for NFS stale file handle errors.

Media directories are frequently NFS mounts. A file that is being replaced
on the server can briefly return ESTALE (errno 116); retrying after a short
backoff almost always succeeds, while any other error fails immediately.

	info, err := filesystem.StatWithRetry(ctx, path, filesystem.DefaultRetryConfig())
	data, err := filesystem.ReadFileWithRetry(ctx, path, filesystem.DefaultRetryConfig())

Backoff sleeps end early when ctx is done, so a session teardown that
cancels its fetches is not held up by a flapping mount.

# Retry Behavior

  - MaxRetries: 3 attempts after the first
  - InitialBackoff: 50ms, doubling per attempt
  - MaxBackoff: 500ms

# Observability

Metrics are reported through the Observer interface, implemented by the
metrics package and installed with SetObserver at startup. Volume labels
come from a VolumeResolver that maps absolute path prefixes to names.
*/
package filesystem
