// Package cache implements the content-addressed local media cache.
//
// Files are keyed by a deterministic filename derived from the media URL,
// so a playlist item maps to the same cache path across restarts and across
// playlist versions that reference the same asset. Integrity is tracked as
// file size plus SHA-256 checksum recorded at download time; any mismatch
// invalidates the entry and forces a re-download.
//
// Capacity is bounded: before any download the manager evicts the least
// recently accessed files until usage is at or below 80% of the configured
// cap. Access recency is approximated by bumping a file's mtime every time
// the cache serves it, which survives restarts without a separate index.
package cache
