package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader yields its parts one Read at a time, regardless of the
// caller's buffer size.
type chunkedReader struct {
	parts [][]byte
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	if n < len(r.parts[0]) {
		r.parts[0] = r.parts[0][n:]
	} else {
		r.parts = r.parts[1:]
	}
	return n, nil
}

func collectEvents(t *testing.T, body io.Reader) ([]Event, string, error) {
	t.Helper()
	var events []Event
	full, err := NewRelay().Run(context.Background(), body, func(ev Event) {
		events = append(events, ev)
	})
	return events, full, err
}

func TestRelayReframesContentAndThinking(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"reasoning_content":"considering"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"delta":{"content":" world"}}]}`,
		`data: [DONE]`,
		``,
	}, "\n")

	events, full, err := collectEvents(t, strings.NewReader(stream))
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, Event{Thinking: "considering"}, events[0])
	assert.Equal(t, Event{Content: "Hello"}, events[1])
	assert.Equal(t, Event{Content: " world"}, events[2])
	assert.Equal(t, Event{Done: true}, events[3])
	assert.Equal(t, "Hello world", full)
}

func TestRelayLinesSplitAcrossReads(t *testing.T) {
	line := `data: {"choices":[{"delta":{"content":"学习进步"}}]}` + "\n" + "data: [DONE]\n"
	raw := []byte(line)

	// Split inside a multi-byte rune to prove byte buffering is safe.
	reader := &chunkedReader{parts: [][]byte{raw[:40], raw[40:41], raw[41:]}}

	events, full, err := collectEvents(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "学习进步", full)
	require.Len(t, events, 2)
	assert.Equal(t, "学习进步", events[0].Content)
	assert.True(t, events[1].Done)
}

func TestRelaySkipsMalformedFrames(t *testing.T) {
	stream := strings.Join([]string{
		`data: {broken json`,
		`: comment line`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
		``,
	}, "\n")

	events, full, err := collectEvents(t, strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "ok", full)
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Content)
	assert.True(t, events[1].Done)
}

func TestRelayEmitsDoneWhenSentinelMissing(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"partial"}}]}` + "\n"

	events, full, err := collectEvents(t, strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "partial", full)
	require.Len(t, events, 2)
	assert.True(t, events[1].Done)
}

func TestRelayEmitsDoneExactlyOnce(t *testing.T) {
	stream := strings.Join([]string{
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"after"}}]}`,
		`data: [DONE]`,
		``,
	}, "\n")

	events, full, err := collectEvents(t, strings.NewReader(stream))
	require.NoError(t, err)
	assert.Empty(t, full)
	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
}

func TestRelayDropsUnterminatedTrailingLine(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"kept"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"cut off`

	events, full, err := collectEvents(t, strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "kept", full)
	require.Len(t, events, 2)
	assert.True(t, events[1].Done)
}

type failingReader struct {
	payload string
	done    bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset")
	}
	r.done = true
	return copy(p, r.payload), nil
}

func TestRelayReturnsAccumulatedTextOnReadError(t *testing.T) {
	reader := &failingReader{payload: `data: {"choices":[{"delta":{"content":"so far"}}]}` + "\n"}

	events, full, err := collectEvents(t, reader)
	require.Error(t, err)
	assert.Equal(t, "so far", full)
	assert.True(t, events[len(events)-1].Done)
}
