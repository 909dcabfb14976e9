// Package artifacts stores per-run audio and video blobs.
//
// Store keeps an in-memory index of run ID to artifacts over a pluggable
// Backend. Keys are "{runID}/{name}" where runID is a UUID, so concurrent runs
// never share a path. Two backends exist: FSBackend writes files atomically
// under a directory, NATSBackend uses a JetStream object store bucket.
//
// Runs expire after the configured TTL. Sweeper evicts them on a cron
// schedule, and Rebuild reloads the index from the backend after a restart.
package artifacts
