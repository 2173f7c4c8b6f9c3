// Package storage defines the conversation thread store and the helpers
// shared by its implementations (memory, postgres).
//
// A thread binds a short, client-visible ID to the most recent
// api.ConversationHandle returned by the backend, so that MCP clients can
// continue a conversation without carrying the raw handle around. Threads
// are scoped to the owner found in the request context.
package storage
