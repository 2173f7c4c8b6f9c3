package perplexity

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rhuss/askstream/pkg/api"
	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/provider"
)

// Event kinds named by the SSE "event:" field (or the JSON "type" member
// when the field is absent).
const (
	kindTextDelta   = "text_delta"
	kindCitations   = "citations"
	kindWebResults  = "web_results"
	kindFollowUp    = "follow_up"
	kindHeartbeat   = "heartbeat"
	kindError       = "error"
	kindDone        = "done"
	kindEndOfStream = "end_of_stream"
	kindMessage     = "message"
)

var errFrameTooLarge = errors.New("frame too large")

// Reader decodes an SSE byte stream into provider events.
//
// Frames are blocks of field lines terminated by a blank line; LF and CRLF
// line endings may be mixed. Decoding only depends on the byte sequence,
// never on how the underlying reader chunks it. Buffering is bounded by one
// line plus one frame, and a frame larger than the configured limit ends the
// stream with a frame_too_large error event.
type Reader struct {
	br       *bufio.Reader
	maxFrame int

	line       []byte
	frame      frame
	frameBytes int

	pending []provider.Event
	err     error // sticky; set once the stream is finished

	// snapshot is the cumulative answer seen in "message" frames.
	snapshot     string
	lastFollowUp *api.ConversationHandle
}

var _ provider.EventReader = (*Reader)(nil)

// frame collects the fields of one SSE block.
type frame struct {
	event    string
	data     [][]byte
	comments int
	fields   int
}

func (f *frame) empty() bool {
	return f.fields == 0 && f.comments == 0
}

func (f *frame) reset() {
	f.event = ""
	f.data = f.data[:0]
	f.comments = 0
	f.fields = 0
}

// NewReader creates a Reader over body. maxFrameBytes <= 0 selects
// DefaultMaxFrameBytes.
func NewReader(body io.Reader, maxFrameBytes int) *Reader {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Reader{
		br:       bufio.NewReader(body),
		maxFrame: maxFrameBytes,
	}
}

// Next returns the next event. It returns io.EOF after the last event, or
// the underlying read error if the connection failed. A partial frame left
// at a clean end of input is decoded when it is well formed and reported
// as truncated_stream otherwise; one cut off by a read error is discarded.
func (r *Reader) Next() (provider.Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			return ev, nil
		}
		if r.err != nil {
			return provider.Event{}, r.err
		}
		r.advance()
	}
}

// advance reads until at least one event is pending or the stream ends.
func (r *Reader) advance() {
	for len(r.pending) == 0 && r.err == nil {
		line, err := r.readLine()
		if errors.Is(err, errFrameTooLarge) {
			debug.Log("stream", "frame exceeds limit", "limit", r.maxFrame)
			r.pending = append(r.pending, provider.ErrorEvent(api.CodeFrameTooLarge,
				fmt.Sprintf("frame exceeds %d bytes", r.maxFrame)))
			r.err = io.EOF
			return
		}

		if len(line) > 0 {
			if content := trimEOL(line); len(content) == 0 {
				r.dispatch()
			} else {
				r.addField(content)
			}
		}

		if err != nil {
			// Only a clean close may surface truncated_stream. A failed read
			// drops the partial frame so the caller sees the read error.
			if errors.Is(err, io.EOF) && !r.frame.empty() {
				r.dispatchTrailing()
			} else {
				r.frame.reset()
			}
			r.err = err
			return
		}
	}
}

// readLine returns the next line including its terminator. At end of input
// the last line may lack a terminator.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		r.line = append(r.line, chunk...)
		r.frameBytes += len(chunk)
		if r.frameBytes > r.maxFrame {
			return nil, errFrameTooLarge
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return r.line, err
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

// addField parses one non-empty SSE line into the current frame.
func (r *Reader) addField(line []byte) {
	if line[0] == ':' {
		r.frame.comments++
		return
	}

	name, value, found := bytes.Cut(line, []byte(":"))
	if found {
		value = bytes.TrimPrefix(value, []byte(" "))
	}

	r.frame.fields++
	switch string(name) {
	case "event":
		r.frame.event = strings.TrimSpace(string(value))
	case "data":
		r.frame.data = append(r.frame.data, append([]byte(nil), value...))
	}
	// id, retry and unknown fields carry nothing for us.
}

// dispatch decodes the completed frame and resets for the next one.
func (r *Reader) dispatch() {
	if !r.frame.empty() {
		r.pending = append(r.pending, r.decode()...)
	}
	r.frame.reset()
	r.frameBytes = 0
}

// dispatchTrailing decodes an unterminated frame at end of input. Anything
// that does not decode cleanly becomes a single truncated_stream event.
func (r *Reader) dispatchTrailing() {
	events := r.decode()
	for _, ev := range events {
		if ev.Type == provider.EventError && ev.Code == api.CodeProtocolError {
			debug.Log("stream", "truncated trailing frame", "reason", ev.Message)
			events = []provider.Event{provider.ErrorEvent(api.CodeTruncatedStream,
				"stream ended inside a frame: "+ev.Message)}
			break
		}
	}
	r.pending = append(r.pending, events...)
	r.frame.reset()
	r.frameBytes = 0
}

// decode converts the current frame into zero or more events.
func (r *Reader) decode() []provider.Event {
	f := &r.frame
	data := bytes.Join(f.data, []byte("\n"))

	kind := f.event
	if kind == "" {
		if len(f.data) == 0 {
			if f.comments > 0 {
				return []provider.Event{provider.Heartbeat()}
			}
			return nil
		}
		var typed struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &typed); err != nil {
			return protocolError("malformed frame payload: %v", err)
		}
		if typed.Type == "" {
			return protocolError("frame has neither an event name nor a type member")
		}
		kind = typed.Type
	}

	if debug.TraceIsEnabled("stream") {
		debug.Trace("stream", "frame", "kind", kind, "data", debug.Truncate(string(data), 512))
	}

	switch kind {
	case kindHeartbeat:
		return []provider.Event{provider.Heartbeat()}
	case kindDone, kindEndOfStream:
		return []provider.Event{provider.Done()}
	}

	if len(f.data) == 0 {
		return protocolError("%s frame has no data", kind)
	}

	switch kind {
	case kindTextDelta:
		var p struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return protocolError("malformed %s payload: %v", kind, err)
		}
		if p.Text == nil {
			return protocolError("%s frame has no text", kind)
		}
		return []provider.Event{provider.TextDelta(*p.Text)}

	case kindCitations, kindWebResults:
		var p struct {
			Entries    []api.WebResult `json:"entries"`
			WebResults []api.WebResult `json:"web_results"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return protocolError("malformed %s payload: %v", kind, err)
		}
		return []provider.Event{provider.Citations(append(p.Entries, p.WebResults...)...)}

	case kindFollowUp:
		var p api.ConversationHandle
		if err := json.Unmarshal(data, &p); err != nil {
			return protocolError("malformed %s payload: %v", kind, err)
		}
		if p.BackendID == "" {
			return protocolError("%s frame has no backend_uuid", kind)
		}
		return []provider.Event{{Type: provider.EventFollowUp, Handle: &p}}

	case kindError:
		var p struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return protocolError("malformed %s payload: %v", kind, err)
		}
		if p.Code == "" {
			p.Code = "upstream_error"
		}
		return []provider.Event{provider.ErrorEvent(p.Code, p.Message)}

	case kindMessage:
		return r.decodeSnapshot(data)

	default:
		return protocolError("unknown event kind %q", kind)
	}
}

// snapshotPayload is a "message" frame: the backend resends the whole answer
// so far, optionally nested in a FINAL step of the "text" member.
type snapshotPayload struct {
	Answer      *string         `json:"answer"`
	Text        json.RawMessage `json:"text"`
	WebResults  []api.WebResult `json:"web_results"`
	BackendUUID string          `json:"backend_uuid"`
	Attachments []string        `json:"attachments"`
}

type snapshotStep struct {
	StepType string `json:"step_type"`
	Content  struct {
		Answer string `json:"answer"`
	} `json:"content"`
}

// decodeSnapshot turns a cumulative "message" frame into incremental events.
func (r *Reader) decodeSnapshot(data []byte) []provider.Event {
	var p snapshotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return protocolError("malformed message payload: %v", err)
	}

	answer, results, ok := finalStep(p.Text)
	if !ok && p.Answer != nil {
		answer, ok = *p.Answer, true
	}
	results = append(p.WebResults, results...)

	var events []provider.Event
	if ok {
		if !strings.HasPrefix(answer, r.snapshot) {
			return protocolError("message answer rewrote %d bytes of streamed text", len(r.snapshot))
		}
		if delta := answer[len(r.snapshot):]; delta != "" {
			events = append(events, provider.TextDelta(delta))
		}
		r.snapshot = answer
	}
	if len(results) > 0 {
		events = append(events, provider.Citations(results...))
	}
	if p.BackendUUID != "" && !r.sameFollowUp(p.BackendUUID, p.Attachments) {
		h := &api.ConversationHandle{BackendID: p.BackendUUID, Attachments: p.Attachments}
		r.lastFollowUp = h
		events = append(events, provider.Event{Type: provider.EventFollowUp, Handle: h.Clone()})
	}
	if len(events) == 0 {
		events = append(events, provider.Heartbeat())
	}
	return events
}

func (r *Reader) sameFollowUp(id string, attachments []string) bool {
	return r.lastFollowUp != nil &&
		r.lastFollowUp.BackendID == id &&
		slices.Equal(r.lastFollowUp.Attachments, attachments)
}

// finalStep extracts the answer from a FINAL step. The "text" member is a
// JSON string holding the step list, and the step's answer is itself a JSON
// string holding {"answer", "web_results"}.
func finalStep(raw json.RawMessage) (string, []api.WebResult, bool) {
	var text string
	if len(raw) == 0 || json.Unmarshal(raw, &text) != nil {
		return "", nil, false
	}
	var steps []snapshotStep
	if json.Unmarshal([]byte(text), &steps) != nil {
		return "", nil, false
	}
	for _, step := range steps {
		if step.StepType != "FINAL" {
			continue
		}
		var inner struct {
			Answer     string          `json:"answer"`
			WebResults []api.WebResult `json:"web_results"`
		}
		if json.Unmarshal([]byte(step.Content.Answer), &inner) != nil {
			return "", nil, false
		}
		return inner.Answer, inner.WebResults, true
	}
	return "", nil, false
}

func protocolError(format string, args ...any) []provider.Event {
	return []provider.Event{provider.ErrorEvent(api.CodeProtocolError, fmt.Sprintf(format, args...))}
}
