package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-insight-api/internal/models"
	"github.com/noah-isme/grade-insight-api/internal/service"
	"github.com/noah-isme/grade-insight-api/pkg/jobs"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
)

type fakeReportStore struct {
	stored map[string]*models.ClassReport
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{stored: map[string]*models.ClassReport{}}
}

func (s *fakeReportStore) Get(_ context.Context, classID, examID int64) (*models.ClassReport, error) {
	return s.stored[fmt.Sprintf("%d:%d", classID, examID)], nil
}

func (s *fakeReportStore) Upsert(_ context.Context, classID, examID int64, content string) error {
	s.stored[fmt.Sprintf("%d:%d", classID, examID)] = &models.ClassReport{
		ClassID: classID, ExamID: examID, ReportContent: content, UpdatedAt: time.Now(),
	}
	return nil
}

func (s *fakeReportStore) Delete(_ context.Context, classID, examID int64) error {
	delete(s.stored, fmt.Sprintf("%d:%d", classID, examID))
	return nil
}

type fakePromptSource struct{}

func (fakePromptSource) CourseAggregates(context.Context, int64, int64) ([]models.CourseAggregate, error) {
	return []models.CourseAggregate{
		{CourseID: 1, CourseName: "Math", FullScore: 100, Average: 78, Max: 98, Min: 41, PassRate: 85, Count: 40},
	}, nil
}

type fakeClassReader struct{}

func (fakeClassReader) Get(context.Context, int64) (*models.Class, error) {
	return &models.Class{ID: 7, Name: "Grade 9 Class 2"}, nil
}

func (fakeClassReader) GetExam(context.Context, int64) (*models.Exam, error) {
	return &models.Exam{ID: 9, Name: "Midterm", ExamDate: time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)}, nil
}

type fakeModel struct {
	completion string
	streamBody string
}

func (m *fakeModel) Complete(context.Context, llm.Request) (string, error) {
	return m.completion, nil
}

func (m *fakeModel) Stream(context.Context, llm.Request) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.streamBody)), nil
}

type fakeDispatcher struct {
	jobsSeen []jobs.Job
}

func (d *fakeDispatcher) Enqueue(job jobs.Job) error {
	d.jobsSeen = append(d.jobsSeen, job)
	return nil
}

func reportTestRouter(model *fakeModel) (*gin.Engine, *fakeReportStore) {
	gin.SetMode(gin.TestMode)
	store := newFakeReportStore()
	svc := service.NewReportService(store, fakePromptSource{}, fakeClassReader{}, model, &fakeDispatcher{},
		nil, service.ReportServiceConfig{Model: "qwen-max"}, nil)
	h := NewReportHandler(svc)

	r := gin.New()
	r.POST("/analysis/classes/:classId/exams/:examId/report", h.Generate)
	r.POST("/analysis/classes/:classId/exams/:examId/report/stream", h.Stream)
	r.GET("/analysis/classes/:classId/exams/:examId/report/pdf", h.PDF)
	return r, store
}

func TestReportGenerateEndpoint(t *testing.T) {
	r, store := reportTestRouter(&fakeModel{completion: "A thorough analysis."})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analysis/classes/7/exams/9/report", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Report string `json:"report"`
			Cached bool   `json:"cached"`
		} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "A thorough analysis.", envelope.Data.Report)
	assert.False(t, envelope.Data.Cached)
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.NotEmpty(t, store.stored)
}

func TestReportGenerateEndpointRejectsBadParams(t *testing.T) {
	r, _ := reportTestRouter(&fakeModel{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analysis/classes/abc/exams/9/report", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportStreamEndpointWritesEventStream(t *testing.T) {
	streamBody := "data: {\"choices\":[{\"delta\":{\"content\":\"Strong term.\"}}]}\n" +
		"data: [DONE]\n"
	r, _ := reportTestRouter(&fakeModel{streamBody: streamBody})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analysis/classes/7/exams/9/report/stream", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"content":"Strong term."}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestReportPDFEndpointNeedsStoredReport(t *testing.T) {
	r, _ := reportTestRouter(&fakeModel{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analysis/classes/7/exams/9/report/pdf", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportPDFEndpointServesDocument(t *testing.T) {
	r, store := reportTestRouter(&fakeModel{})
	require.NoError(t, store.Upsert(context.Background(), 7, 9, "Overall the class improved."))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analysis/classes/7/exams/9/report/pdf", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "class_report_7_9.pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}
