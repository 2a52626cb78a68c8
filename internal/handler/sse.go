package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-insight-api/pkg/llm"
	"github.com/noah-isme/grade-insight-api/pkg/response"
)

type sseFrame struct {
	Thinking string `json:"thinking,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// streamSSE runs a streaming producer and relays its events to the client as
// server-sent data frames. Errors before the first frame fall back to the
// regular JSON error contract; later errors are sent as an error frame.
func streamSSE(c *gin.Context, run func(emit llm.EmitFunc) error) {
	flusher, _ := c.Writer.(http.Flusher)
	started := false

	writeFrame := func(frame sseFrame) {
		raw, err := json.Marshal(frame)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", raw)
	}

	emit := func(ev llm.Event) {
		if !started {
			started = true
			header := c.Writer.Header()
			header.Set("Content-Type", "text/event-stream")
			header.Set("Cache-Control", "no-cache")
			header.Set("Connection", "keep-alive")
			header.Set("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		if ev.Thinking != "" {
			writeFrame(sseFrame{Thinking: ev.Thinking})
		}
		if ev.Content != "" {
			writeFrame(sseFrame{Content: ev.Content})
		}
		if ev.Done {
			fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := run(emit); err != nil {
		if !started {
			response.Error(c, err)
			return
		}
		writeFrame(sseFrame{Error: err.Error()})
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}
}
