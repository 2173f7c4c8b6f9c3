// Command demo walks through the query protocol offline: it builds a wire
// request, decodes a recorded event stream and folds it into a final
// response.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/engine"
	"github.com/rhuss/askstream/pkg/provider/perplexity"
	"github.com/rhuss/askstream/pkg/provider/perplexity/perplexitytest"
)

func main() {
	fmt.Println("=== askstream protocol demo ===")
	fmt.Println()

	p := perplexity.New(perplexity.DefaultConfig())

	// 1. Build a request for the research tier.
	q := api.Query{
		Text:    "What is the capital of France?",
		Sources: []api.Source{api.SourceWeb, api.SourceScholar},
		Tier:    api.ModelTierResearch,
	}
	req, err := p.BuildRequest(q, nil)
	if err != nil {
		fmt.Printf("BuildRequest FAILED: %v\n", err)
		return
	}
	fmt.Printf("[1] %s %s\n%s\n", req.Method, req.Path, indent(req.Body))

	// 2. Replay the stream the mock backend sends for that request.
	var wire perplexitytest.Request
	if err := json.Unmarshal(req.Body, &wire); err != nil {
		fmt.Printf("decoding request: %v\n", err)
		return
	}
	stream := strings.Join(perplexitytest.Script(wire, true), "")
	fmt.Printf("\n[2] Recorded stream (%d bytes, cumulative message frames)\n", len(stream))

	// 3. Decode and fold event by event.
	fmt.Println("\n[3] Events:")
	acc := engine.NewAccumulator()
	r := p.NewEventReader(strings.NewReader(stream))
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("    read error: %v\n", err)
			return
		}
		fmt.Printf("    %-10s %s\n", ev.Type, summarize(ev.Text, ev.Entries, ev.Handle))
		acc.Fold(ev)
	}

	// 4. Finalize.
	resp, err := acc.Finalize()
	if err != nil {
		fmt.Printf("Finalize FAILED: %v\n", err)
		return
	}
	data, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("\n[4] Final response (%s):\n%s\n", acc.Status(), data)

	// 5. Follow-up request embeds the handle.
	next, err := p.BuildRequest(api.Query{Text: "And Germany?"}, resp.FollowUp)
	if err != nil {
		fmt.Printf("follow-up BuildRequest FAILED: %v\n", err)
		return
	}
	fmt.Printf("\n[5] Follow-up request:\n%s\n", indent(next.Body))

	// 6. Run state transitions.
	fmt.Println("\n[6] Run state transitions:")
	transitions := []struct{ from, to api.RunStatus }{
		{api.RunStatusStreaming, api.RunStatusCompleted},
		{api.RunStatusStreaming, api.RunStatusFailed},
		{api.RunStatusCompleted, api.RunStatusStreaming},
		{api.RunStatusFailed, api.RunStatusCompleted},
	}
	for _, t := range transitions {
		if err := api.ValidateRunTransition(t.from, t.to); err != nil {
			fmt.Printf("    %s -> %s: BLOCKED (%v)\n", t.from, t.to, err)
		} else {
			fmt.Printf("    %s -> %s: OK\n", t.from, t.to)
		}
	}

	// 7. Validation errors never reach the network.
	fmt.Println("\n[7] Validation error examples:")
	for _, bad := range []api.Query{
		{Text: "   "},
		{Text: "hi", Tier: "turbo"},
		{Text: "hi", Tier: api.ModelTierResearch, Model: "gpt-5"},
	} {
		if _, err := p.BuildRequest(bad, nil); err != nil {
			fmt.Printf("    %-40q %v\n", fmt.Sprintf("%+v", bad), err)
		}
	}

	fmt.Println("\n=== demo complete ===")
}

func summarize(text string, entries []api.WebResult, handle *api.ConversationHandle) string {
	switch {
	case text != "":
		return fmt.Sprintf("%q", text)
	case len(entries) > 0:
		return fmt.Sprintf("%d web result(s)", len(entries))
	case handle != nil:
		return "backend_uuid=" + handle.BackendID
	}
	return ""
}

func indent(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	out, _ := json.MarshalIndent(v, "    ", "  ")
	return "    " + string(out)
}
