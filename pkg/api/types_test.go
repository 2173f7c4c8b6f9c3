package api

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestQueryWithDefaults(t *testing.T) {
	q := Query{Text: "  hello  "}
	got := q.WithDefaults()

	if got.Text != "hello" {
		t.Errorf("Text = %q, want %q", got.Text, "hello")
	}
	if !reflect.DeepEqual(got.Sources, []Source{SourceWeb}) {
		t.Errorf("Sources = %v, want [web]", got.Sources)
	}
	if got.Language != DefaultLanguage {
		t.Errorf("Language = %q, want %q", got.Language, DefaultLanguage)
	}
	if got.Tier != ModelTierQuick {
		t.Errorf("Tier = %q, want %q", got.Tier, ModelTierQuick)
	}

	// The original query is untouched.
	if q.Text != "  hello  " || q.Sources != nil {
		t.Error("WithDefaults mutated the receiver")
	}
}

func TestQueryWithDefaults_CanonicalSources(t *testing.T) {
	q := Query{Text: "x", Sources: []Source{SourceSocial, SourceWeb, SourceSocial}}
	got := q.WithDefaults()
	want := []Source{SourceWeb, SourceSocial}
	if !reflect.DeepEqual(got.Sources, want) {
		t.Errorf("Sources = %v, want %v", got.Sources, want)
	}
}

func TestParseModelTier(t *testing.T) {
	tests := []struct {
		in   string
		want ModelTier
		ok   bool
	}{
		{"", ModelTierQuick, true},
		{"quick", ModelTierQuick, true},
		{"Research", ModelTierResearch, true},
		{"reasoning", ModelTierReasoning, true},
		{"deep", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseModelTier(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseModelTier(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFinalResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		resp FinalResponse
		want string
	}{
		{
			"no follow-up",
			FinalResponse{Answer: "Paris is the capital.", WebResults: []WebResult{{URL: "https://a"}}},
			`{"answer":"Paris is the capital.","web_results":[{"name":"","url":"https://a","snippet":""}],"follow_up":null}`,
		},
		{
			"nil results and empty attachments",
			FinalResponse{Answer: "x", FollowUp: &ConversationHandle{BackendID: "b-1"}},
			`{"answer":"x","web_results":[],"follow_up":{"backend_uuid":"b-1","attachments":[]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("JSON = %s\nwant   %s", data, tt.want)
			}
		})
	}
}

func TestConversationHandleClone(t *testing.T) {
	var nilHandle *ConversationHandle
	if nilHandle.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}

	h := &ConversationHandle{BackendID: "b", Attachments: []string{"u1"}}
	c := h.Clone()
	c.Attachments[0] = "changed"
	if h.Attachments[0] != "u1" {
		t.Error("Clone shares the attachments slice")
	}
}
