// Package main hosts the reelforge CLI.
//
// The Cobra command tree covers the foreground service (serve), one-shot and
// batch pipeline runs executed in-process, run history inspection, config
// scaffolding and the doctor checks. Configuration is resolved once per
// invocation by commandContext; commands annotated with skipConfigLoad run
// without it.
package main
