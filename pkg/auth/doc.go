// Package auth covers both directions of authentication in askstream.
//
// Outbound, [Credentials] carries the backend session and CSRF tokens and
// attaches them to each streaming request. Credentials are immutable,
// passed explicitly into every run, and never logged.
//
// Inbound, the HTTP MCP endpoint is protected by a chain-of-responsibility
// of authenticators with three-outcome voting: each authenticator returns
// Yes (identity found), No (credentials invalid), or Abstain (can't handle).
// A configurable default voter decides when all authenticators abstain.
// The middleware injects the caller identity into the request context so
// conversation threads can be scoped to their owner.
package auth
