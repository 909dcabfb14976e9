// Package notifications publishes run events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the pipeline can notify unconditionally. Completion and failure events can
// be switched off individually in config.toml; themes are title-cased for
// display.
package notifications
