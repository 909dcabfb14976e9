// Package textutil provides text helpers shared by the pipeline and CLI.
//
// The main entry points are:
//   - CleanForSpeech, which turns raw model output into narration text
//   - SanitizeFileName for artifact names
//   - Fingerprint, CosineSimilarity and DedupeThemes, used by batch runs to
//     skip near-duplicate themes
package textutil
