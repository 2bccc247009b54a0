// Package fetch implements the collaborators that turn a media reference
// into bytes.
//
// Every implementation satisfies [Fetcher]. The engine does not care where
// bytes come from; it needs a cancelable call that eventually returns a
// [Payload] or an error.
//
//   - [HTTPFetcher] talks to a remote media service by id or by path
//   - [FileFetcher] reads from a local (possibly NFS) directory tree
//   - [S3Fetcher] reads objects from an S3-compatible bucket
//   - [BlobFetcher] returns the bytes of materialized references
//   - [Router] dispatches on the reference kind
//   - [RateLimited] caps request rate in front of any of the above
//
// Collaborators report the pre-compression size of a compressed variant
// under media.SizeHintKey in Payload.Meta.
package fetch
