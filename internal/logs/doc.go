// Package logs reads the daemon's log files for the CLI.
//
// Tail returns the last lines of a log (or the lines after a byte offset)
// and Follow keeps polling for appended lines until its context ends. Both
// accept a Filter that narrows JSON log lines to one run or a minimum level.
package logs
