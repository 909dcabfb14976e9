// Package openai writes video scripts with the OpenAI chat completion API via
// the go-openai SDK. It is the default script provider.
package openai
