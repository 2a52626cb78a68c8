package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-insight-api/internal/middleware"
	"github.com/noah-isme/grade-insight-api/internal/service"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/response"
)

// AnalysisHandler exposes dashboard-ready analytics endpoints.
type AnalysisHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalysisHandler constructs the analysis handler.
func NewAnalysisHandler(analytics *service.AnalyticsService) *AnalysisHandler {
	return &AnalysisHandler{analytics: analytics}
}

// FocusGroups godoc
// @Summary Attention-worthy students of a class
// @Tags Analysis
// @Produce json
// @Param classId path int true "Class id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analysis/classes/{classId}/focus-groups [get]
func (h *AnalysisHandler) FocusGroups(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, err := pathID(c, "classId")
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	groups, err := h.analytics.FocusGroups(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, groups, nil, meta)
}

// ExamQuality godoc
// @Summary Per-course quality indicators for an exam
// @Tags Analysis
// @Produce json
// @Param examId path int true "Exam id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analysis/exams/{examId}/quality [get]
func (h *AnalysisHandler) ExamQuality(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	examID, err := pathID(c, "examId")
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	quality, err := h.analytics.ExamQuality(c.Request.Context(), examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, quality, nil, meta)
}

// Distribution godoc
// @Summary Grade band distribution for a class exam
// @Tags Analysis
// @Produce json
// @Param classId path int true "Class id"
// @Param examId path int true "Exam id"
// @Success 200 {object} response.Envelope
// @Router /analysis/classes/{classId}/exams/{examId}/distribution [get]
func (h *AnalysisHandler) Distribution(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, err := pathID(c, "classId")
	if err != nil {
		response.Error(c, err)
		return
	}
	examID, err := pathID(c, "examId")
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	dist, cacheHit, err := h.analytics.Distribution(c.Request.Context(), classID, examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, dist, nil, meta)
}

// StudentProfile godoc
// @Summary Standardised latest-exam profile of a student
// @Tags Analysis
// @Produce json
// @Param studentId path int true "Student id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analysis/students/{studentId}/profile [get]
func (h *AnalysisHandler) StudentProfile(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	studentID, err := pathID(c, "studentId")
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	profile, cacheHit, err := h.analytics.StudentProfile(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, profile, nil, meta)
}
