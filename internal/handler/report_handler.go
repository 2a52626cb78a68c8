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

// ReportHandler wires HTTP endpoints to the report service.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs the report handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Generate godoc
// @Summary Generate or return the class exam report
// @Tags Reports
// @Produce json
// @Param classId path int true "Class id"
// @Param examId path int true "Exam id"
// @Param force query bool false "Discard stored report and regenerate"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /analysis/classes/{classId}/exams/{examId}/report [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	if h.reports == nil {
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
	force, _ := strconv.ParseBool(c.Query("force"))

	start := time.Now()
	content, cached, err := h.reports.ClassReport(c.Request.Context(), classID, examID, force)
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
		"class_id": classID,
		"exam_id":  examID,
		"report":   content,
		"cached":   cached,
	}, nil, meta)
}

// Stream godoc
// @Summary Stream a fresh class exam report
// @Tags Reports
// @Produce text/event-stream
// @Param classId path int true "Class id"
// @Param examId path int true "Exam id"
// @Success 200 {string} string "SSE stream"
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /analysis/classes/{classId}/exams/{examId}/report/stream [post]
func (h *ReportHandler) Stream(c *gin.Context) {
	if h.reports == nil {
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

	streamSSE(c, func(emit llm.EmitFunc) error {
		return h.reports.StreamClassReport(c.Request.Context(), classID, examID, emit)
	})
}

// PDF godoc
// @Summary Download the stored class exam report as PDF
// @Tags Reports
// @Produce application/pdf
// @Param classId path int true "Class id"
// @Param examId path int true "Exam id"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /analysis/classes/{classId}/exams/{examId}/report/pdf [get]
func (h *ReportHandler) PDF(c *gin.Context) {
	if h.reports == nil {
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

	raw, filename, err := h.reports.ReportPDF(c.Request.Context(), classID, examID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}
