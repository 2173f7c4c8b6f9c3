package perplexity

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/askstream/pkg/api"
)

type wireBody struct {
	QueryStr string `json:"query_str"`
	Params   struct {
		Attachments         []string `json:"attachments"`
		FrontendContextUUID string   `json:"frontend_context_uuid"`
		FrontendUUID        string   `json:"frontend_uuid"`
		IsIncognito         bool     `json:"is_incognito"`
		Language            string   `json:"language"`
		LastBackendUUID     *string  `json:"last_backend_uuid"`
		Mode                string   `json:"mode"`
		ModelPreference     string   `json:"model_preference"`
		Source              string   `json:"source"`
		Sources             []string `json:"sources"`
		Version             string   `json:"version"`
	} `json:"params"`
}

func decodeBody(t *testing.T, body []byte) wireBody {
	t.Helper()
	var w wireBody
	if err := json.Unmarshal(body, &w); err != nil {
		t.Fatalf("decoding body: %v\n%s", err, body)
	}
	return w
}

func TestBuildRequest_Defaults(t *testing.T) {
	p := New(Config{})
	req, err := p.BuildRequest(api.Query{Text: "  What is Go?  "}, nil)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if req.Method != "POST" || req.Path != AskPath {
		t.Errorf("request line = %s %s", req.Method, req.Path)
	}
	if req.Header.Get("Accept") != "text/event-stream" {
		t.Errorf("Accept = %q", req.Header.Get("Accept"))
	}

	w := decodeBody(t, req.Body)
	if w.QueryStr != "What is Go?" {
		t.Errorf("query_str = %q", w.QueryStr)
	}
	if w.Params.Mode != "concise" || w.Params.ModelPreference != "turbo" {
		t.Errorf("mode/pref = %s/%s, want concise/turbo", w.Params.Mode, w.Params.ModelPreference)
	}
	if strings.Join(w.Params.Sources, ",") != "web" {
		t.Errorf("sources = %v, want [web]", w.Params.Sources)
	}
	if w.Params.Language != "en-US" || w.Params.Source != "default" || w.Params.Version != APIVersion {
		t.Errorf("params = %+v", w.Params)
	}
	if w.Params.Attachments == nil || len(w.Params.Attachments) != 0 {
		t.Errorf("attachments = %v, want empty array", w.Params.Attachments)
	}
	if w.Params.LastBackendUUID != nil {
		t.Errorf("last_backend_uuid present on a new conversation")
	}
	if w.Params.FrontendUUID == "" || w.Params.FrontendContextUUID == "" {
		t.Errorf("frontend uuids missing")
	}
}

func TestBuildRequest_KeyOrder(t *testing.T) {
	req, err := New(Config{}).BuildRequest(api.Query{Text: "q"}, &api.ConversationHandle{BackendID: "b"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	body := string(req.Body)
	keys := []string{
		`"query_str"`, `"params"`, `"attachments"`, `"frontend_context_uuid"`, `"frontend_uuid"`,
		`"is_incognito"`, `"language"`, `"last_backend_uuid"`, `"mode"`, `"model_preference"`,
		`"source"`, `"sources"`, `"version"`,
	}
	last := -1
	for _, k := range keys {
		idx := strings.Index(body, k)
		if idx <= last {
			t.Fatalf("key %s out of order in %s", k, body)
		}
		last = idx
	}
}

func TestBuildRequest_Deterministic(t *testing.T) {
	p := New(Config{})
	q := api.Query{
		Text:     "capital of France",
		Sources:  []api.Source{api.SourceSocial, api.SourceWeb},
		Language: "fr-FR",
		Tier:     api.ModelTierReasoning,
		Model:    "gemini-3.0-pro",
	}
	h := &api.ConversationHandle{BackendID: "b-1", Attachments: []string{"https://files/a"}}

	first, err := p.BuildRequest(q, h)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := New(Config{}).BuildRequest(q, h.Clone())
		if err != nil {
			t.Fatalf("BuildRequest: %v", err)
		}
		if !bytes.Equal(first.Body, again.Body) {
			t.Fatalf("bodies differ:\n%s\n%s", first.Body, again.Body)
		}
	}

	other, _ := p.BuildRequest(api.Query{Text: "capital of Spain"}, nil)
	if decodeBody(t, other.Body).Params.FrontendUUID == decodeBody(t, first.Body).Params.FrontendUUID {
		t.Error("different queries share a frontend_uuid")
	}
}

func TestBuildRequest_FollowUp(t *testing.T) {
	p := New(Config{})
	q := api.Query{Text: "and its population?"}
	h := &api.ConversationHandle{BackendID: "b-42", Attachments: []string{"a1", "a2"}}

	fresh, _ := p.BuildRequest(q, nil)
	cont, err := p.BuildRequest(q, h)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	w := decodeBody(t, cont.Body)
	if w.Params.LastBackendUUID == nil || *w.Params.LastBackendUUID != "b-42" {
		t.Errorf("last_backend_uuid = %v", w.Params.LastBackendUUID)
	}
	if strings.Join(w.Params.Attachments, ",") != "a1,a2" {
		t.Errorf("attachments = %v", w.Params.Attachments)
	}
	if w.Params.FrontendContextUUID == decodeBody(t, fresh.Body).Params.FrontendContextUUID {
		t.Error("continuation reused the fresh conversation context uuid")
	}

	// The same thread keeps its context uuid across turns.
	next, _ := p.BuildRequest(api.Query{Text: "and its area?"}, h)
	if decodeBody(t, next.Body).Params.FrontendContextUUID != w.Params.FrontendContextUUID {
		t.Error("context uuid changed within one thread")
	}
	if len(h.Attachments) != 2 {
		t.Errorf("handle mutated: %v", h.Attachments)
	}
}

func TestBuildRequest_SourcesAndIncognito(t *testing.T) {
	req, err := New(Config{}).BuildRequest(api.Query{
		Text:      "q",
		Sources:   []api.Source{api.SourceSocial, api.SourceScholar, api.SourceSocial},
		Incognito: true,
	}, nil)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	w := decodeBody(t, req.Body)
	if strings.Join(w.Params.Sources, ",") != "scholar,social" {
		t.Errorf("sources = %v", w.Params.Sources)
	}
	if !w.Params.IsIncognito {
		t.Error("is_incognito = false")
	}
}

func TestBuildRequest_Tiers(t *testing.T) {
	tests := []struct {
		tier     api.ModelTier
		model    string
		wantMode string
		wantPref string
		wantCode string
	}{
		{tier: api.ModelTierQuick, wantMode: "concise", wantPref: "turbo"},
		{tier: api.ModelTierQuick, model: "pro", wantMode: "copilot", wantPref: "pplx_pro"},
		{tier: api.ModelTierQuick, model: "GPT-5.2", wantMode: "copilot", wantPref: "gpt52"},
		{tier: api.ModelTierQuick, model: "sonar", wantMode: "copilot", wantPref: "experimental"},
		{tier: api.ModelTierResearch, wantMode: "copilot", wantPref: "pplx_alpha"},
		{tier: api.ModelTierReasoning, wantMode: "copilot", wantPref: "pplx_reasoning"},
		{tier: api.ModelTierReasoning, model: "kimi-k2-thinking", wantMode: "copilot", wantPref: "kimik2thinking"},
		{tier: api.ModelTierReasoning, model: "claude-4.5-sonnet-thinking", wantMode: "copilot", wantPref: "claude45sonnetthinking"},
		{tier: api.ModelTierResearch, model: "gpt-5.2", wantCode: api.CodeInvalidModel},
		{tier: api.ModelTierReasoning, model: "sonar", wantCode: api.CodeInvalidModel},
		{tier: "ultra", wantCode: api.CodeInvalidModelTier},
	}

	p := New(Config{})
	for _, tt := range tests {
		t.Run(string(tt.tier)+"/"+tt.model, func(t *testing.T) {
			req, err := p.BuildRequest(api.Query{Text: "q", Tier: tt.tier, Model: tt.model}, nil)
			if tt.wantCode != "" {
				var apiErr *api.Error
				if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindValidation || apiErr.Code != tt.wantCode {
					t.Fatalf("err = %v, want validation/%s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildRequest: %v", err)
			}
			w := decodeBody(t, req.Body)
			if w.Params.Mode != tt.wantMode || w.Params.ModelPreference != tt.wantPref {
				t.Errorf("mode/pref = %s/%s, want %s/%s",
					w.Params.Mode, w.Params.ModelPreference, tt.wantMode, tt.wantPref)
			}
		})
	}
}

func TestBuildRequest_Validation(t *testing.T) {
	tests := []struct {
		name string
		q    api.Query
		code string
	}{
		{name: "empty", q: api.Query{}, code: api.CodeEmptyQuery},
		{name: "whitespace", q: api.Query{Text: " \n\t"}, code: api.CodeEmptyQuery},
		{name: "bad source", q: api.Query{Text: "q", Sources: []api.Source{"news"}}, code: api.CodeInvalidSource},
		{name: "too long", q: api.Query{Text: strings.Repeat("x", 11)}, code: api.CodeQueryTooLong},
	}

	p := New(Config{MaxQueryLength: 10})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.BuildRequest(tt.q, nil)
			if !errors.Is(err, &api.Error{Kind: api.ErrorKindValidation, Code: tt.code}) {
				t.Errorf("err = %v, want validation/%s", err, tt.code)
			}
		})
	}
}

func TestModels(t *testing.T) {
	if got := Models(api.ModelTierResearch); len(got) != 0 {
		t.Errorf("research models = %v, want none", got)
	}
	got := strings.Join(Models(api.ModelTierReasoning), ",")
	want := "claude-4.5-sonnet-thinking,gemini-3.0-pro,gpt-5.2-thinking,grok-4.1-reasoning,kimi-k2-thinking"
	if got != want {
		t.Errorf("reasoning models = %s, want %s", got, want)
	}
}
