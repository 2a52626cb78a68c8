package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-insight-api/internal/middleware"
	"github.com/noah-isme/grade-insight-api/internal/service"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
	"github.com/noah-isme/grade-insight-api/pkg/response"
)

// AIHandler wires HTTP endpoints to the comment, chat and quota services.
type AIHandler struct {
	comments *service.CommentService
	chat     *service.ChatService
	quota    *service.QuotaService
}

// NewAIHandler constructs the AI handler.
func NewAIHandler(comments *service.CommentService, chat *service.ChatService, quota *service.QuotaService) *AIHandler {
	return &AIHandler{comments: comments, chat: chat, quota: quota}
}

type commentRequest struct {
	Style string `json:"style"`
}

// GenerateComment godoc
// @Summary Generate or return the term comment for a student
// @Tags AI
// @Accept json
// @Produce json
// @Param studentId path int true "Student id"
// @Param force query bool false "Regenerate even when a comment exists"
// @Param payload body commentRequest false "Comment options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /ai/comments/students/{studentId} [post]
func (h *AIHandler) GenerateComment(c *gin.Context) {
	if h.comments == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := pathID(c, "studentId")
	if err != nil {
		response.Error(c, err)
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))

	var req commentRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
			return
		}
	}

	start := time.Now()
	comment, cached, err := h.comments.StudentComment(c.Request.Context(), studentID, req.Style, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, gin.H{
		"student_id": studentID,
		"comment":    comment,
		"cached":     cached,
	}, nil, meta)
}

// LatestComment godoc
// @Summary Most recently stored comment for a student
// @Tags AI
// @Produce json
// @Param studentId path int true "Student id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ai/comments/students/{studentId} [get]
func (h *AIHandler) LatestComment(c *gin.Context) {
	if h.comments == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := pathID(c, "studentId")
	if err != nil {
		response.Error(c, err)
		return
	}

	comment, err := h.comments.LatestComment(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}

type chatRequest struct {
	Message string        `json:"message" binding:"required"`
	History []llm.Message `json:"history"`
}

// ChatStream godoc
// @Summary Stream a teaching assistant chat answer
// @Tags AI
// @Accept json
// @Produce text/event-stream
// @Param payload body chatRequest true "Chat payload"
// @Success 200 {string} string "SSE stream"
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /ai/chat/stream [post]
func (h *AIHandler) ChatStream(c *gin.Context) {
	if h.chat == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}

	streamSSE(c, func(emit llm.EmitFunc) error {
		return h.chat.KnowledgeChat(c.Request.Context(), req.Message, req.History, emit)
	})
}

// Usage godoc
// @Summary Today's AI request budget usage
// @Tags AI
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ai/usage [get]
func (h *AIHandler) Usage(c *gin.Context) {
	if h.quota == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	usage, err := h.quota.Usage(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usage, nil)
}

// ModelQuotas godoc
// @Summary Vendor rate limit snapshots per model
// @Tags AI
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ai/models/quota [get]
func (h *AIHandler) ModelQuotas(c *gin.Context) {
	if h.quota == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	quotas, err := h.quota.ModelQuotas(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quotas, nil)
}
