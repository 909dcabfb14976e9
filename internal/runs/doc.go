// Package runs persists pipeline run history in SQLite.
//
// Each run row tracks the theme, the stage it reached, the script and
// narration it produced, and references to its audio and video artifacts.
// The schema is embedded and versioned; a mismatch asks the operator to
// delete the database rather than migrating it. Writes retry briefly when
// SQLite reports the database as busy.
//
// MarkInterrupted is called at startup so runs abandoned by a previous
// process end up failed instead of appearing in progress forever.
package runs
