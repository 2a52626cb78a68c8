package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
)

// Message is a single chat turn sent to the model provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one chat completion call. History, when present, is
// inserted between the system prompt and the final user message.
type Request struct {
	Model   string
	System  string
	User    string
	History []Message
}

// QuotaGate reserves one unit of daily usage before any upstream attempt.
type QuotaGate interface {
	CheckAndReserve(ctx context.Context) error
}

// HeaderSink receives provider rate-limit headers observed on successful
// responses. Implementations must tolerate concurrent calls.
type HeaderSink interface {
	RecordFromHeaders(ctx context.Context, model string, header http.Header)
}

// Config holds provider connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	DefaultModel   string
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

// Client calls an OpenAI-compatible chat completions endpoint with quota
// gating and bounded retries.
type Client struct {
	cfg    Config
	http   *http.Client
	gate   QuotaGate
	sink   HeaderSink
	logger *zap.Logger

	sleep func(context.Context, time.Duration) error
}

// NewClient builds a Client. gate and sink may be nil.
func NewClient(cfg Config, gate QuotaGate, sink HeaderSink, logger *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg: cfg,
		// No transport-level timeout: it would cut long-lived streaming
		// bodies. Deadlines come in through the context.
		http:   &http.Client{},
		gate:   gate,
		sink:   sink,
		logger: logger,
		sleep:  sleepContext,
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete performs a non-streaming completion and returns the first choice's
// content, or the empty string when the provider returns no choices.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstreamRejected.Code, appErrors.ErrUpstreamRejected.Status, "malformed completion response")
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream performs a streaming completion and hands back the raw response body
// without buffering. The caller owns closing it.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// do reserves quota once, then attempts the request up to MaxRetries+1 times.
func (c *Client) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if c.gate != nil {
		if err := c.gate.CheckAndReserve(ctx); err != nil {
			return nil, err
		}
	}

	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: buildMessages(req), Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var lastStatus int
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build chat request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if attempt < c.cfg.MaxRetries && retryableTransportError(err) {
				c.logger.Warn("model request failed, retrying",
					zap.String("model", model), zap.Int("attempt", attempt+1), zap.Error(err))
				if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
		}

		if resp.StatusCode == http.StatusOK {
			c.forwardHeaders(model, resp.Header)
			return resp, nil
		}

		lastStatus = resp.StatusCode
		if retryableStatus[resp.StatusCode] && attempt < c.cfg.MaxRetries {
			delay := c.backoff(attempt)
			if ra, ok := retryAfter(resp.Header); ok {
				delay = ra
			}
			drainAndClose(resp.Body)
			c.logger.Warn("model responded with retryable status",
				zap.String("model", model), zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, serr
			}
			continue
		}

		detail := readErrorBody(resp.Body)
		resp.Body.Close()
		if retryableStatus[resp.StatusCode] {
			return nil, appErrors.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, detail),
				appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
		}
		return nil, appErrors.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, detail),
			appErrors.ErrUpstreamRejected.Code, appErrors.ErrUpstreamRejected.Status, appErrors.ErrUpstreamRejected.Message)
	}

	return nil, appErrors.Wrap(fmt.Errorf("retries exhausted, last status %d", lastStatus),
		appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
}

// forwardHeaders hands rate-limit headers to the sink without blocking the
// response path. Failures inside the sink are its own concern.
func (c *Client) forwardHeaders(model string, header http.Header) {
	if c.sink == nil {
		return
	}
	snapshot := header.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.sink.RecordFromHeaders(ctx, model, snapshot)
	}()
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt))
}

func buildMessages(req Request) []Message {
	msgs := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.History...)
	if req.User != "" {
		msgs = append(msgs, Message{Role: "user", Content: req.User})
	}
	return msgs
}

func retryableTransportError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"network", "timeout", "fetch"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func retryAfter(header http.Header) (time.Duration, bool) {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "<no body>"
	}
	return string(bytes.TrimSpace(raw))
}
