package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// Event is one re-framed unit relayed to a downstream client. Exactly one
// field is set per event.
type Event struct {
	Thinking string
	Content  string
	Done     bool
}

// EmitFunc delivers one event to the downstream client.
type EmitFunc func(Event)

type relayState int

const (
	stateAccumulatingLine relayState = iota
	stateLineComplete
	stateStreamDone
)

// Relay re-frames a provider SSE stream into thinking/content events while
// accumulating the complete assistant text. Line boundaries may fall anywhere
// relative to read chunks; a partial line is retained across reads. Splitting
// on the newline byte is rune-safe because UTF-8 continuation bytes never
// equal 0x0A.
type Relay struct {
	state       relayState
	buf         []byte
	full        strings.Builder
	doneEmitted bool
}

// NewRelay returns a Relay ready for a single stream.
func NewRelay() *Relay {
	return &Relay{}
}

// Run consumes body until EOF, emitting events as complete lines arrive, and
// returns the accumulated content. The terminal done event is emitted exactly
// once, also when the provider never sent its sentinel. A read error after
// partial output still returns what accumulated so far.
func (r *Relay) Run(ctx context.Context, body io.Reader, emit EmitFunc) (string, error) {
	chunk := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			r.finish(emit)
			return r.full.String(), err
		}

		n, err := body.Read(chunk)
		if n > 0 {
			r.consume(chunk[:n], emit)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			r.finish(emit)
			return r.full.String(), fmt.Errorf("read model stream: %w", err)
		}
	}

	r.finish(emit)
	return r.full.String(), nil
}

func (r *Relay) consume(chunk []byte, emit EmitFunc) {
	r.buf = append(r.buf, chunk...)
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			if r.state != stateStreamDone {
				r.state = stateAccumulatingLine
			}
			return
		}

		line := string(r.buf[:idx])
		r.buf = r.buf[idx+1:]

		// After the done sentinel the current chunk is drained but its
		// remaining lines are ignored.
		if r.state == stateStreamDone {
			continue
		}

		r.state = stateLineComplete
		r.handleLine(line, emit)
		if r.state != stateStreamDone {
			r.state = stateAccumulatingLine
		}
	}
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (r *Relay) handleLine(line string, emit EmitFunc) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == doneSentinel {
		r.markDone(emit)
		return
	}

	var parsed streamChunk
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		// Malformed frames are dropped, the stream goes on.
		return
	}
	if len(parsed.Choices) == 0 {
		return
	}

	delta := parsed.Choices[0].Delta
	if delta.ReasoningContent != "" {
		emit(Event{Thinking: delta.ReasoningContent})
	}
	if delta.Content != "" {
		r.full.WriteString(delta.Content)
		emit(Event{Content: delta.Content})
	}
}

func (r *Relay) markDone(emit EmitFunc) {
	if !r.doneEmitted {
		r.doneEmitted = true
		emit(Event{Done: true})
	}
	r.state = stateStreamDone
}

// finish drops any unterminated trailing line, matching the behaviour of the
// browser-side consumer this protocol was built for, and seals the stream.
func (r *Relay) finish(emit EmitFunc) {
	r.buf = nil
	r.markDone(emit)
}
