// Package pipeline turns a theme into a narrated short video.
//
// An Orchestrator runs three stages in order: a chat model writes a script,
// the cleaned narration is synthesized to audio, and a renderer produces a
// talking-avatar video. Synchronous renderers return the finished video;
// asynchronous ones are submitted and then polled with a fixed interval up
// to a ceiling. A failing stage ends the run immediately and is reported as
// a StageError naming that stage. Nothing is retried.
//
// Every run gets a UUID that keys its artifacts, its history row and its log
// lines. Runs share only the artifact store and history, both safe for
// concurrent use, so Batch can fan themes out over an ants worker pool.
package pipeline
