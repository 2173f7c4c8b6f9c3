package tools

import (
	"fmt"
	"slices"
)

// Tool names.
const (
	ToolSearch       = "perplexity_search"
	ToolResearch     = "perplexity_research"
	ToolReason       = "perplexity_reason"
	ToolListThreads  = "list_threads"
	ToolDeleteThread = "delete_thread"
)

var (
	searchTools = []string{ToolSearch, ToolResearch, ToolReason}
	threadTools = []string{ToolListThreads, ToolDeleteThread}
)

// EnabledTools resolves the configured tool allowlist. An empty list
// enables every tool that can be served; thread tools are only available
// when threads is true. Unknown names, and thread tools without a thread
// store, are configuration errors. The result is in canonical order
// without duplicates.
func EnabledTools(enabled []string, threads bool) ([]string, error) {
	available := slices.Clone(searchTools)
	if threads {
		available = append(available, threadTools...)
	}
	if len(enabled) == 0 {
		return available, nil
	}

	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		switch {
		case slices.Contains(available, name):
			want[name] = true
		case slices.Contains(threadTools, name):
			return nil, fmt.Errorf("tool %q requires thread storage", name)
		default:
			return nil, fmt.Errorf("unknown tool %q", name)
		}
	}

	var out []string
	for _, name := range available {
		if want[name] {
			out = append(out, name)
		}
	}
	return out, nil
}
