// Package server exposes the pipeline over HTTP.
//
// Routes are GET-only: /generate runs the whole pipeline inside the request,
// /video submits a render job (or reuses a prior run's audio via ?run=) and
// answers 202 while it is pending, /video/status relays the upstream job
// payload, /voice.mp3 and /artifacts/{run}/{name} serve stored blobs, /runs
// lists history, and /health reports stage readiness.
//
// Pipeline errors keep their services marker, so the status code comes from
// services.HTTPStatus. The request context is passed to the pipeline; a
// disconnected client cancels the run including render polling. The write
// timeout is raised above the poll ceiling so /generate can wait for a video.
package server
