package perplexity

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/provider"
)

// requestNamespace seeds the name-based UUIDs embedded in request bodies.
var requestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(DefaultBaseURL+AskPath))

// askPayload is the perplexity_ask request body. Field order is the
// serialization order.
type askPayload struct {
	QueryStr string    `json:"query_str"`
	Params   askParams `json:"params"`
}

type askParams struct {
	Attachments         []string `json:"attachments"`
	FrontendContextUUID string   `json:"frontend_context_uuid"`
	FrontendUUID        string   `json:"frontend_uuid"`
	IsIncognito         bool     `json:"is_incognito"`
	Language            string   `json:"language"`
	LastBackendUUID     string   `json:"last_backend_uuid,omitempty"`
	Mode                string   `json:"mode"`
	ModelPreference     string   `json:"model_preference"`
	Source              string   `json:"source"`
	Sources             []string `json:"sources"`
	Version             string   `json:"version"`
}

// BuildRequest validates q, applies defaults and serializes it. When handle
// is non-nil its backend ID and attachments are embedded so the backend
// continues that conversation.
//
// The frontend UUIDs are UUIDv5 values derived from the rest of the body, so
// identical inputs produce byte-identical requests.
func (p *Provider) BuildRequest(q api.Query, handle *api.ConversationHandle) (*provider.WireRequest, error) {
	if verr := api.ValidateQuery(q, p.validation); verr != nil {
		return nil, verr
	}
	q = q.WithDefaults()

	mode, preference, err := modePreference(q.Tier, q.Model)
	if err != nil {
		return nil, err
	}

	payload := askPayload{
		QueryStr: q.Text,
		Params: askParams{
			Attachments:     []string{},
			IsIncognito:     q.Incognito,
			Language:        q.Language,
			Mode:            mode,
			ModelPreference: preference,
			Source:          "default",
			Sources:         make([]string, 0, len(q.Sources)),
			Version:         APIVersion,
		},
	}
	for _, s := range q.Sources {
		payload.Params.Sources = append(payload.Params.Sources, string(s))
	}
	if handle != nil {
		payload.Params.LastBackendUUID = handle.BackendID
		payload.Params.Attachments = append(payload.Params.Attachments, handle.Attachments...)
	}

	seed, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request seed: %w", err)
	}
	frontend := uuid.NewSHA1(requestNamespace, seed)
	payload.Params.FrontendUUID = frontend.String()
	if handle != nil && handle.BackendID != "" {
		payload.Params.FrontendContextUUID = uuid.NewSHA1(requestNamespace, []byte("context:"+handle.BackendID)).String()
	} else {
		payload.Params.FrontendContextUUID = uuid.NewSHA1(frontend, []byte("context")).String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "text/event-stream")

	return &provider.WireRequest{
		Method: http.MethodPost,
		Path:   AskPath,
		Header: header,
		Body:   body,
	}, nil
}
