// Package config loads, normalizes, and validates reelforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file from the working directory,
// and honours environment fallbacks such as OPENAI_API_KEY, ELEVENLABS_API_KEY,
// HEYGEN_API_KEY and PORT. The Config type centralizes every knob the service
// and CLI need.
//
// Load fails fast: any validation problem is returned wrapped with
// services.ErrConfiguration so callers can refuse to start.
package config
