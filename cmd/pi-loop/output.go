// ABOUTME: Terminal rendering of loop events: live text deltas on stdout, tool activity on stderr
// ABOUTME: Subscribed to the driver's event bus for the duration of one prompt

package main

import (
	"fmt"
	"io"

	"github.com/mauromedda/pi-loop-go/internal/agent"
)

type printer struct {
	out, errOut io.Writer
	stream      bool
	verbose     bool
	streamed    bool // any text delta was written
}

func newPrinter(out, errOut io.Writer, stream, verbose bool) *printer {
	return &printer{out: out, errOut: errOut, stream: stream, verbose: verbose}
}

func (p *printer) handle(ev agent.Event) {
	switch ev.Type {
	case agent.EventTextDelta:
		if p.stream {
			fmt.Fprint(p.out, ev.Text)
			p.streamed = true
		}
	case agent.EventToolUse:
		fmt.Fprintf(p.errOut, "[tool: %s]\n", ev.Name)
	case agent.EventToolOutcome:
		if ev.Outcome != nil && ev.Outcome.Failed() {
			fmt.Fprintf(p.errOut, "[tool %s failed: %s]\n", ev.Name, firstLine(ev.Outcome.Content))
		}
	case agent.EventVerificationFailed:
		p.endLine()
		fmt.Fprintf(p.errOut, "[verification failed: %s]\n", ev.Text)
	case agent.EventLLMCallEnd:
		if p.verbose && ev.Usage != nil {
			fmt.Fprintf(p.errOut, "[iteration %d: %d in / %d out tokens, stop=%s]\n",
				ev.Iteration, ev.Usage.InputTokens, ev.Usage.OutputTokens, ev.Stop)
		}
	}
}

// endLine terminates a partially streamed answer.
func (p *printer) endLine() {
	if p.streamed {
		fmt.Fprintln(p.out)
		p.streamed = false
	}
}

// finish prints the final answer unless it was already streamed.
func (p *printer) finish(res agent.Result) {
	if p.streamed {
		p.endLine()
	} else if res.Text != "" {
		fmt.Fprintln(p.out, res.Text)
	}
	if res.Status == agent.StatusMaxIterationsExceeded {
		fmt.Fprintf(p.errOut, "warning: stopped after %d iterations without a verified answer\n", res.Iterations)
	}
	if p.verbose {
		fmt.Fprintf(p.errOut, "[total: %d in / %d out tokens over %d iterations]\n",
			res.Usage.InputTokens, res.Usage.OutputTokens, res.Iterations)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
