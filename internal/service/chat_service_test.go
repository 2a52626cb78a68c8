package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
)

func TestKnowledgeChatRejectsBlankMessage(t *testing.T) {
	svc := NewChatService(&stubCompleter{}, nil, ChatServiceConfig{Model: "qwen-max"}, nil)

	err := svc.KnowledgeChat(context.Background(), "   ", nil, func(llm.Event) {})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestKnowledgeChatStreamsEvents(t *testing.T) {
	model := &stubCompleter{streamBody: sseFrames("Use ", "seat rotation.")}
	svc := NewChatService(model, nil, ChatServiceConfig{Model: "qwen-max"}, nil)

	history := []llm.Message{
		{Role: "user", Content: "How do I handle a chatty class?"},
		{Role: "assistant", Content: "Set clear signals first."},
	}

	var text string
	var done bool
	err := svc.KnowledgeChat(context.Background(), "Any seating ideas?", history, func(ev llm.Event) {
		text += ev.Content
		done = done || ev.Done
	})
	require.NoError(t, err)

	assert.Equal(t, "Use seat rotation.", text)
	assert.True(t, done)
	assert.Equal(t, "qwen-max", model.lastRequest.Model)
	assert.Equal(t, "Any seating ideas?", model.lastRequest.User)
	assert.Equal(t, history, model.lastRequest.History)
}

func TestKnowledgeChatKeepsOnlyRecentHistory(t *testing.T) {
	model := &stubCompleter{streamBody: "data: [DONE]\n"}
	svc := NewChatService(model, nil, ChatServiceConfig{Model: "qwen-max"}, nil)

	history := make([]llm.Message, 0, 25)
	for i := 0; i < 25; i++ {
		history = append(history, llm.Message{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	err := svc.KnowledgeChat(context.Background(), "latest question", history, func(llm.Event) {})
	require.NoError(t, err)

	require.Len(t, model.lastRequest.History, maxChatHistory)
	assert.Equal(t, "turn 5", model.lastRequest.History[0].Content)
	assert.Equal(t, "turn 24", model.lastRequest.History[len(model.lastRequest.History)-1].Content)
}
