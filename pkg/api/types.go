package api

import (
	"encoding/json"
	"strings"
)

// DefaultLanguage is used when a query does not specify a locale.
const DefaultLanguage = "en-US"

// Source is an information source the backend may search.
type Source string

const (
	SourceWeb     Source = "web"
	SourceScholar Source = "scholar"
	SourceSocial  Source = "social"
)

// allSources lists sources in their canonical order.
var allSources = []Source{SourceWeb, SourceScholar, SourceSocial}

// ParseSource converts a caller-supplied string into a Source.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceWeb:
		return SourceWeb, true
	case SourceScholar:
		return SourceScholar, true
	case SourceSocial:
		return SourceSocial, true
	default:
		return "", false
	}
}

// ModelTier selects how much effort the backend spends on a query.
type ModelTier string

const (
	ModelTierQuick     ModelTier = "quick"
	ModelTierResearch  ModelTier = "research"
	ModelTierReasoning ModelTier = "reasoning"
)

// ParseModelTier converts a string into a ModelTier. The empty string maps
// to ModelTierQuick.
func ParseModelTier(s string) (ModelTier, bool) {
	switch ModelTier(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModelTierQuick:
		return ModelTierQuick, true
	case ModelTierResearch:
		return ModelTierResearch, true
	case ModelTierReasoning:
		return ModelTierReasoning, true
	default:
		return "", false
	}
}

// Query is a single logical question sent to the backend. It is a value
// type: callers build one per invocation and never mutate it afterwards.
type Query struct {
	// Text is the question itself (required, non-empty).
	Text string

	// Sources restricts where the backend searches. Empty means web only.
	Sources []Source

	// Language is a locale tag such as "en-US". Empty means DefaultLanguage.
	Language string

	// Tier selects the backend model family. Empty means ModelTierQuick.
	Tier ModelTier

	// Model optionally pins a specific model within the tier
	// (e.g. "claude-4.5-sonnet-thinking" for the reasoning tier).
	Model string

	// Incognito asks the backend not to keep the thread in its history.
	Incognito bool
}

// WithDefaults returns a copy of q with defaults applied: sources are
// de-duplicated into canonical order (web when empty), the language falls
// back to DefaultLanguage, and the tier falls back to ModelTierQuick.
// The receiver is not modified.
func (q Query) WithDefaults() Query {
	out := q
	out.Text = strings.TrimSpace(q.Text)

	seen := make(map[Source]bool, len(q.Sources))
	for _, s := range q.Sources {
		seen[s] = true
	}
	out.Sources = nil
	for _, s := range allSources {
		if seen[s] {
			out.Sources = append(out.Sources, s)
		}
	}
	if len(out.Sources) == 0 {
		out.Sources = []Source{SourceWeb}
	}

	if strings.TrimSpace(out.Language) == "" {
		out.Language = DefaultLanguage
	}
	if out.Tier == "" {
		out.Tier = ModelTierQuick
	}
	return out
}

// ConversationHandle is the opaque follow-up state issued by the backend.
// The engine transports it between runs without inspecting it.
type ConversationHandle struct {
	BackendID   string   `json:"backend_uuid"`
	Attachments []string `json:"attachments"`
}

// MarshalJSON ensures attachments are always an array, never null.
func (h ConversationHandle) MarshalJSON() ([]byte, error) {
	type wire ConversationHandle
	w := wire(h)
	if w.Attachments == nil {
		w.Attachments = []string{}
	}
	return json.Marshal(w)
}

// Clone returns a deep copy of the handle. A nil receiver yields nil.
func (h *ConversationHandle) Clone() *ConversationHandle {
	if h == nil {
		return nil
	}
	c := &ConversationHandle{BackendID: h.BackendID}
	if len(h.Attachments) > 0 {
		c.Attachments = append([]string(nil), h.Attachments...)
	}
	return c
}

// WebResult is a single citation attached to an answer.
type WebResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// FinalResponse is the read-only result of a successful run.
type FinalResponse struct {
	Answer     string              `json:"answer"`
	WebResults []WebResult         `json:"web_results"`
	FollowUp   *ConversationHandle `json:"follow_up"`
}

// MarshalJSON ensures web_results is always an array, never null.
func (r FinalResponse) MarshalJSON() ([]byte, error) {
	type wire FinalResponse
	w := wire(r)
	if w.WebResults == nil {
		w.WebResults = []WebResult{}
	}
	return json.Marshal(w)
}
