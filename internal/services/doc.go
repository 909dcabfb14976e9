// Package services defines shared utilities consumed by the pipeline stages
// and their upstream integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the HTTPStatus
//     mapping that turns those markers into response codes.
//
// Adapters under services/ (openai, llm, elevenlabs, heygen, localrender)
// tag their failures with these markers so the orchestrator and HTTP layer
// can classify them without knowing the vendor.
package services
