// Package api defines the core types shared by the askstream query engine.
//
// This package provides the caller-facing data model for conversational
// search queries: the immutable [Query], the opaque [ConversationHandle]
// used to continue a conversation, the assembled [FinalResponse], run
// status transitions, and the canonical error taxonomy ([Error]).
//
// The package performs no I/O. All types produce the JSON shape exposed to
// tool-dispatch collaborators:
//
//	{"answer": "...", "web_results": [{"name","url","snippet"}], "follow_up": {...} | null}
//
// Core types:
//   - [Query]: text, sources, language, model tier
//   - [ConversationHandle]: backend-assigned follow-up state
//   - [FinalResponse]: answer text, citations, optional follow-up handle
//   - [Error]: typed error with kind, code and message
package api
