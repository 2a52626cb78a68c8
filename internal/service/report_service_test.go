package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/jobs"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
)

type memReportStore struct {
	reports map[string]*models.ClassReport
	upserts int
	deletes int
}

func newMemReportStore() *memReportStore {
	return &memReportStore{reports: map[string]*models.ClassReport{}}
}

func reportKey(classID, examID int64) string {
	return fmt.Sprintf("%d:%d", classID, examID)
}

func (s *memReportStore) Get(_ context.Context, classID, examID int64) (*models.ClassReport, error) {
	return s.reports[reportKey(classID, examID)], nil
}

func (s *memReportStore) Upsert(_ context.Context, classID, examID int64, content string) error {
	s.upserts++
	s.reports[reportKey(classID, examID)] = &models.ClassReport{
		ClassID:       classID,
		ExamID:        examID,
		ReportContent: content,
		UpdatedAt:     time.Now(),
	}
	return nil
}

func (s *memReportStore) Delete(_ context.Context, classID, examID int64) error {
	s.deletes++
	delete(s.reports, reportKey(classID, examID))
	return nil
}

type stubPromptSource struct {
	aggregates []models.CourseAggregate
}

func (s *stubPromptSource) CourseAggregates(context.Context, int64, int64) ([]models.CourseAggregate, error) {
	return s.aggregates, nil
}

type stubClassReader struct {
	class *models.Class
	exam  *models.Exam
}

func (s *stubClassReader) Get(context.Context, int64) (*models.Class, error) {
	return s.class, nil
}

func (s *stubClassReader) GetExam(context.Context, int64) (*models.Exam, error) {
	return s.exam, nil
}

type stubCompleter struct {
	completeResult string
	completeErr    error
	completeCalls  int
	streamBody     string
	streamErr      error
	streamCalls    int
	lastRequest    llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.completeCalls++
	s.lastRequest = req
	return s.completeResult, s.completeErr
}

func (s *stubCompleter) Stream(_ context.Context, req llm.Request) (io.ReadCloser, error) {
	s.streamCalls++
	s.lastRequest = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return io.NopCloser(strings.NewReader(s.streamBody)), nil
}

type recordingDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}

func reportFixture(store *memReportStore, model *stubCompleter, queue *recordingDispatcher) *ReportService {
	scores := &stubPromptSource{aggregates: []models.CourseAggregate{
		{CourseID: 1, CourseName: "Math", FullScore: 100, Average: 78.5, Max: 98, Min: 41, PassRate: 87.5, Count: 40},
	}}
	classes := &stubClassReader{
		class: &models.Class{ID: 7, Name: "Grade 9 Class 2"},
		exam:  &models.Exam{ID: 9, Name: "Midterm", ExamDate: time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)},
	}
	return NewReportService(store, scores, classes, model, queue,
		nil, ReportServiceConfig{Model: "qwen-max", FailureSentinel: "generation failed"}, nil)
}

func TestClassReportServesStoredWithoutGenerating(t *testing.T) {
	store := newMemReportStore()
	store.reports[reportKey(7, 9)] = &models.ClassReport{ClassID: 7, ExamID: 9, ReportContent: "stored text"}
	model := &stubCompleter{}
	svc := reportFixture(store, model, &recordingDispatcher{})

	content, cached, err := svc.ClassReport(context.Background(), 7, 9, false)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "stored text", content)
	assert.Zero(t, model.completeCalls)
}

func TestClassReportGeneratesAndStoresOnMiss(t *testing.T) {
	store := newMemReportStore()
	model := &stubCompleter{completeResult: "The class performed well overall."}
	svc := reportFixture(store, model, &recordingDispatcher{})

	content, cached, err := svc.ClassReport(context.Background(), 7, 9, false)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "The class performed well overall.", content)
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, "qwen-max", model.lastRequest.Model)
	assert.Contains(t, model.lastRequest.User, "Grade 9 Class 2")
	assert.Contains(t, model.lastRequest.User, "Math")
}

func TestClassReportForceDiscardsStoredFirst(t *testing.T) {
	store := newMemReportStore()
	store.reports[reportKey(7, 9)] = &models.ClassReport{ClassID: 7, ExamID: 9, ReportContent: "old text"}
	model := &stubCompleter{completeResult: "fresh text"}
	svc := reportFixture(store, model, &recordingDispatcher{})

	content, cached, err := svc.ClassReport(context.Background(), 7, 9, true)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "fresh text", content)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 1, model.completeCalls)
	assert.Equal(t, "fresh text", store.reports[reportKey(7, 9)].ReportContent)
}

func TestClassReportNeverStoresFailureText(t *testing.T) {
	store := newMemReportStore()
	model := &stubCompleter{completeResult: "report generation failed, please retry"}
	svc := reportFixture(store, model, &recordingDispatcher{})

	content, _, err := svc.ClassReport(context.Background(), 7, 9, false)
	require.NoError(t, err)
	assert.Contains(t, content, "generation failed")
	assert.Zero(t, store.upserts)
	assert.Empty(t, store.reports)
}

func TestClassReportRejectsInvalidIDs(t *testing.T) {
	svc := reportFixture(newMemReportStore(), &stubCompleter{}, &recordingDispatcher{})

	_, _, err := svc.ClassReport(context.Background(), 0, 9, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassReportNeedsRecordedScores(t *testing.T) {
	svc := NewReportService(newMemReportStore(), &stubPromptSource{}, &stubClassReader{
		class: &models.Class{ID: 7, Name: "Grade 9 Class 2"},
		exam:  &models.Exam{ID: 9, Name: "Midterm"},
	}, &stubCompleter{}, &recordingDispatcher{}, nil, ReportServiceConfig{Model: "qwen-max"}, nil)

	_, _, err := svc.ClassReport(context.Background(), 7, 9, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func sseFrames(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n", c)
	}
	b.WriteString("data: [DONE]\n")
	return b.String()
}

func TestStreamClassReportEnqueuesPersistExactlyOnce(t *testing.T) {
	store := newMemReportStore()
	model := &stubCompleter{streamBody: sseFrames("Solid ", "progress.")}
	queue := &recordingDispatcher{}
	svc := reportFixture(store, model, queue)

	var events []llm.Event
	err := svc.StreamClassReport(context.Background(), 7, 9, func(ev llm.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.True(t, events[len(events)-1].Done)
	require.Len(t, queue.enqueued, 1)
	job := queue.enqueued[0]
	assert.Equal(t, persistReportJobType, job.Type)
	assert.NotEmpty(t, job.ID)

	payload, ok := job.Payload.(reportPersistPayload)
	require.True(t, ok)
	assert.EqualValues(t, 7, payload.ClassID)
	assert.EqualValues(t, 9, payload.ExamID)
	assert.Equal(t, "Solid progress.", payload.Content)
}

func TestStreamClassReportSkipsPersistForEmptyOutput(t *testing.T) {
	model := &stubCompleter{streamBody: "data: [DONE]\n"}
	queue := &recordingDispatcher{}
	svc := reportFixture(newMemReportStore(), model, queue)

	err := svc.StreamClassReport(context.Background(), 7, 9, func(llm.Event) {})
	require.NoError(t, err)
	assert.Empty(t, queue.enqueued)
}

func TestStreamClassReportSkipsPersistForFailureText(t *testing.T) {
	model := &stubCompleter{streamBody: sseFrames("report generation failed")}
	queue := &recordingDispatcher{}
	svc := reportFixture(newMemReportStore(), model, queue)

	err := svc.StreamClassReport(context.Background(), 7, 9, func(llm.Event) {})
	require.NoError(t, err)
	assert.Empty(t, queue.enqueued)
}

func TestHandlePersistJobUpsertsPayload(t *testing.T) {
	store := newMemReportStore()
	svc := reportFixture(store, &stubCompleter{}, &recordingDispatcher{})

	err := svc.HandlePersistJob(context.Background(), jobs.Job{
		ID:      "j1",
		Type:    persistReportJobType,
		Payload: reportPersistPayload{ClassID: 7, ExamID: 9, Content: "streamed text"},
	})
	require.NoError(t, err)
	assert.Equal(t, "streamed text", store.reports[reportKey(7, 9)].ReportContent)
}

func TestHandlePersistJobRejectsForeignPayload(t *testing.T) {
	svc := reportFixture(newMemReportStore(), &stubCompleter{}, &recordingDispatcher{})

	err := svc.HandlePersistJob(context.Background(), jobs.Job{ID: "j2", Payload: "nonsense"})
	require.Error(t, err)
}

func TestReportPDFRequiresStoredReport(t *testing.T) {
	svc := reportFixture(newMemReportStore(), &stubCompleter{}, &recordingDispatcher{})

	_, _, err := svc.ReportPDF(context.Background(), 7, 9)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportPDFRendersStoredContent(t *testing.T) {
	store := newMemReportStore()
	store.reports[reportKey(7, 9)] = &models.ClassReport{
		ClassID:       7,
		ExamID:        9,
		ReportContent: "Overall the class improved.\n\nMath remains the weakest subject.",
		UpdatedAt:     time.Date(2026, 4, 21, 9, 0, 0, 0, time.UTC),
	}
	svc := reportFixture(store, &stubCompleter{}, &recordingDispatcher{})

	raw, filename, err := svc.ReportPDF(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.Equal(t, "class_report_7_9.pdf", filename)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
}
