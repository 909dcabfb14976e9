// Package daemon coordinates the long-running reelforge process.
//
// It wires configuration, run history, the pipeline orchestrator, the HTTP
// server, and the artifact sweeper into a single lifecycle with flock-based
// locking to prevent multiple instances sharing one data directory. The
// daemon also reports runtime status and sends test notifications.
//
// Keep orchestration logic here: pipeline stages live in internal/pipeline
// and routes in internal/server, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
