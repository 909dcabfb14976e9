// Package providers builds the pipeline's script, voice and render clients
// and its artifact store from configuration.
package providers
