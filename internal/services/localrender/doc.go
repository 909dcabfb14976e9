// Package localrender renders avatar videos with a locally installed command.
//
// The command receives the narration audio path, a still image path and an
// output path through {audio}, {image} and {output} argument placeholders.
// Rendering is synchronous: Render returns once the command exits and the
// output file has been read back.
package localrender
