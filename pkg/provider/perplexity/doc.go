// Package perplexity implements the provider interfaces for the Perplexity
// web backend: request serialization for the perplexity_ask endpoint, a
// chunk-boundary independent SSE frame decoder, and an HTTP transport that
// carries the session cookies.
package perplexity
