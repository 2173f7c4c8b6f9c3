// Package tools exposes the query engine as Model Context Protocol tools.
//
// Three search tools map onto the backend's model tiers:
// perplexity_search (quick), perplexity_research (research) and
// perplexity_reason (reasoning). Each returns the assembled answer, its
// web results and a follow-up handle. When a thread store is configured,
// completed answers are saved as conversation threads that later calls
// continue via thread_id, and list_threads / delete_thread manage them.
//
// Text deltas are forwarded as MCP progress notifications when the client
// sends a progress token. Client-side cancellation aborts the run.
package tools
