package service

import (
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
)

const maxChatHistory = 20

type streamClient interface {
	Stream(ctx context.Context, req llm.Request) (io.ReadCloser, error)
}

// ChatServiceConfig tunes the assistant chat.
type ChatServiceConfig struct {
	Model string
}

// ChatService streams free-form teaching assistant conversations. Nothing is
// persisted; the caller carries the rolling history.
type ChatService struct {
	model   streamClient
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ChatServiceConfig
}

// NewChatService constructs the service.
func NewChatService(model streamClient, metrics *MetricsService, cfg ChatServiceConfig, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{model: model, metrics: metrics, logger: logger, cfg: cfg}
}

const chatSystemPrompt = `You are an experienced and approachable AI teaching assistant for head teachers.

Your role:
1. Answer questions about teaching, classroom management and student guidance.
2. Offer practical, actionable advice with short examples when useful.
3. Keep the tone friendly and collegial, like a seasoned co-worker.

Ground rules:
- When a question touches student privacy, remind the teacher to protect it.
- For questions needing professional judgement, such as medical or psychological assessment, recommend consulting a specialist.`

// KnowledgeChat streams an answer to message, given the prior turns, into
// emit as incremental events.
func (s *ChatService) KnowledgeChat(ctx context.Context, message string, history []llm.Message, emit llm.EmitFunc) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return appErrors.Clone(appErrors.ErrValidation, "message must not be empty")
	}
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}

	start := time.Now()
	body, err := s.model.Stream(ctx, llm.Request{
		Model:   s.cfg.Model,
		System:  chatSystemPrompt,
		User:    message,
		History: history,
	})
	if err != nil {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "error", time.Since(start))
		return err
	}
	defer body.Close()

	_, runErr := llm.NewRelay().Run(ctx, body, emit)
	if runErr != nil {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "stream_error", time.Since(start))
		return runErr
	}
	s.metrics.ObserveLLMRequest(s.cfg.Model, "ok", time.Since(start))
	return nil
}
