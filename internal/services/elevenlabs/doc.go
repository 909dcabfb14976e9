// Package elevenlabs synthesizes narration audio with the ElevenLabs
// text-to-speech API.
package elevenlabs
