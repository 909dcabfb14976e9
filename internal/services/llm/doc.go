// Package llm provides a chat-completions client for OpenAI-compatible
// gateways such as OpenRouter.
//
// It backs the "chat" script provider: GenerateScript renders the configured
// prompt template for a theme and returns the model's plain-text reply.
//
// # Configuration
//
// Requires api_key, model, and a prompt template; optionally base_url,
// system_prompt, referer, title, timeout and retry_attempts.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.GenerateScript: write a short spoken script for a theme.
// Client.HealthCheck: send a tiny completion to verify the key and model.
//
// # Retry Behaviour
//
// Transport retries are opt-in via retry_attempts (default 1, meaning a single
// attempt). When enabled, the client retries on HTTP 408/429/5xx errors,
// empty content and network timeouts with exponential backoff (base 1s,
// max 10s), honouring Retry-After. Context cancellation aborts retries
// immediately.
package llm
