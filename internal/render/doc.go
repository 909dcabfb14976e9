// Package render defines the video rendering contract shared by the hosted
// avatar service and the local command renderer.
//
// Two protocol shapes are supported. A SyncRenderer returns a finished job
// from Render. An AsyncRenderer returns a job ID from Submit and reports
// progress through Status until the job reaches a terminal State.
package render
