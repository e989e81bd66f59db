// ABOUTME: Folds canonical stream events into a complete AssistantMessage
// ABOUTME: Shared by the streaming transport and the agent loop's streaming path

package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Accumulator gathers streaming events into a final AssistantMessage.
// Not safe for concurrent use.
type Accumulator struct {
	model      string
	stopReason StopReason
	usage      Usage
	content    []Content
	current    *blockState
	stopped    bool
	err        error
}

// blockState tracks the in-progress content block.
type blockState struct {
	contentType ContentType
	id          string
	name        string
	text        strings.Builder
	toolInput   strings.Builder
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Apply folds one event into the accumulated response.
func (a *Accumulator) Apply(ev StreamEvent) {
	switch ev.Type {
	case EventMessageStart:
		a.model = ev.Model
		if ev.Usage != nil {
			a.usage = *ev.Usage
		}
	case EventTextDelta:
		if a.current == nil || a.current.contentType != ContentText {
			a.finishBlock()
			a.current = &blockState{contentType: ContentText}
		}
		a.current.text.WriteString(ev.Text)
	case EventToolUseStart:
		a.finishBlock()
		a.current = &blockState{contentType: ContentToolUse, id: ev.ToolID, name: ev.ToolName}
	case EventInputJSONDelta:
		if a.current != nil && a.current.contentType == ContentToolUse {
			a.current.toolInput.WriteString(ev.PartialJSON)
		}
	case EventContentBlockStop:
		a.finishBlock()
	case EventMessageDelta:
		if ev.StopReason != "" {
			a.stopReason = ev.StopReason
		}
		if ev.Usage != nil {
			if ev.Usage.InputTokens > 0 {
				a.usage.InputTokens = ev.Usage.InputTokens
			}
			if ev.Usage.OutputTokens > 0 {
				a.usage.OutputTokens = ev.Usage.OutputTokens
			}
		}
	case EventMessageStop:
		a.finishBlock()
		a.stopped = true
	case EventError:
		a.err = ev.Error
		if a.err == nil {
			a.err = fmt.Errorf("stream error")
		}
	}
}

// finishBlock finalizes the current block and appends it to content.
func (a *Accumulator) finishBlock() {
	if a.current == nil {
		return
	}
	block := Content{Type: a.current.contentType}
	switch a.current.contentType {
	case ContentText:
		block.Text = a.current.text.String()
	case ContentToolUse:
		block.ID = a.current.id
		block.Name = a.current.name
		input := a.current.toolInput.String()
		if input == "" {
			input = "{}"
		}
		block.Input = json.RawMessage(input)
	}
	a.content = append(a.content, block)
	a.current = nil
}

// Stopped reports whether a MessageStop event was applied.
func (a *Accumulator) Stopped() bool {
	return a.stopped
}

// Err returns the error carried by an applied Error event.
func (a *Accumulator) Err() error {
	return a.err
}

// Result constructs the AssistantMessage from the events applied so far.
func (a *Accumulator) Result() *AssistantMessage {
	a.finishBlock()
	return &AssistantMessage{
		Content:    a.content,
		StopReason: a.stopReason,
		Usage:      a.usage,
		Model:      a.model,
	}
}
