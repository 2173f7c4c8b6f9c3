// Package provider defines the seam between the query engine and a
// conversational search backend.
//
// A backend contributes three things: a [Protocol] that turns a query into a
// [WireRequest] and decodes the response body into [Event] values, and a
// [Transport] that opens the streaming connection. The engine only sees the
// typed event union, so backend framing never leaks past this package's
// implementations.
package provider
