// Package transport serves the MCP tool server to clients.
//
// Two transports are supported. Stdio runs a single session over the
// process's stdin and stdout, the way desktop MCP clients launch servers.
// HTTP serves the MCP streamable HTTP transport on /mcp next to /healthz,
// /readyz and /metrics.
//
// # Middleware
//
// HTTP requests pass through a middleware chain: panic recovery, request
// ID assignment (X-Request-ID), structured logging via log/slog, request
// metrics and, when configured, inbound authentication with rate limiting.
// Each MCP session gets its own server bound to the authenticated
// identity, which scopes conversation threads.
//
// On shutdown the server stops accepting requests, aborts in-flight query
// runs and waits for handlers to return.
package transport
