// Package heygen renders talking-avatar videos with the HeyGen API.
//
// Rendering is asynchronous: Submit posts to /v2/video/generate with the
// narration supplied as an audio URL, and Status reads
// /v1/video_status.get. Upstream states pending, waiting and processing are
// still running; completed and failed are terminal; anything else is
// treated as failed.
package heygen
