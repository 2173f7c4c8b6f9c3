package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/askstream/pkg/debug"
	"github.com/rhuss/askstream/pkg/provider"
)

// progressBuffer bounds queued notifications. Deltas beyond it are
// dropped; the final answer is unaffected.
const progressBuffer = 64

// progress forwards run events to the client as progress notifications.
// The engine calls hook on its own goroutine, so hook never blocks; a
// separate goroutine does the sending.
type progress struct {
	ch   chan string
	done chan struct{}
}

func startProgress(ctx context.Context, session *mcp.ServerSession, token any) *progress {
	p := &progress{
		ch:   make(chan string, progressBuffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		n := 0
		for msg := range p.ch {
			n++
			err := session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
				ProgressToken: token,
				Progress:      float64(n),
				Message:       msg,
			})
			if err != nil {
				debug.Log("tools", "progress notification failed", "error", err)
			}
		}
	}()
	return p
}

func (p *progress) hook(_ string, ev provider.Event) {
	var msg string
	switch ev.Type {
	case provider.EventTextDelta:
		msg = ev.Text
	case provider.EventCitations:
		msg = fmt.Sprintf("found %d web results", len(ev.Entries))
	default:
		return
	}
	if msg == "" {
		return
	}
	select {
	case p.ch <- msg:
	default:
	}
}

// stop waits until queued notifications are sent.
func (p *progress) stop() {
	close(p.ch)
	<-p.done
}
