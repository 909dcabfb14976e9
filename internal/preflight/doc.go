// Package preflight provides readiness checks for the external services and
// filesystem paths reelforge depends on.
//
// The CLI "doctor" command runs RunAll and prints one row per check; it also
// uses ProbeDaemon to report whether a daemon holds the data dir lock.
//
// Checks for optional components are gated by configuration: the local
// render binaries are only checked when render.provider = "local", and NATS
// only when the nats artifact backend is selected.
package preflight
