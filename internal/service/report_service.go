package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/export"
	"github.com/noah-isme/grade-insight-api/pkg/jobs"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
)

const persistReportJobType = "persist_class_report"

// reportPersistPayload travels through the job queue after a stream ends.
type reportPersistPayload struct {
	ClassID int64
	ExamID  int64
	Content string
}

// ReportStore persists generated class reports.
type ReportStore interface {
	Get(ctx context.Context, classID, examID int64) (*models.ClassReport, error)
	Upsert(ctx context.Context, classID, examID int64, content string) error
	Delete(ctx context.Context, classID, examID int64) error
}

// PromptSource supplies the statistics report prompts are built from.
type PromptSource interface {
	CourseAggregates(ctx context.Context, classID, examID int64) ([]models.CourseAggregate, error)
}

// ClassReader resolves class and exam descriptors.
type ClassReader interface {
	Get(ctx context.Context, classID int64) (*models.Class, error)
	GetExam(ctx context.Context, examID int64) (*models.Exam, error)
}

// Completer is the slice of the model client used by this service.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request) (io.ReadCloser, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReportServiceConfig tunes generation behaviour.
type ReportServiceConfig struct {
	Model           string
	FailureSentinel string
}

// ReportService generates, caches and exports per-exam class reports.
type ReportService struct {
	reports ReportStore
	scores  PromptSource
	classes ClassReader
	model   Completer
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// NewReportService constructs the service.
func NewReportService(reports ReportStore, scores PromptSource, classes ClassReader, model Completer, queue jobDispatcher, metrics *MetricsService, cfg ReportServiceConfig, logger *zap.Logger) *ReportService {
	if cfg.FailureSentinel == "" {
		cfg.FailureSentinel = "generation failed"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports: reports,
		scores:  scores,
		classes: classes,
		model:   model,
		queue:   queue,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

const reportSystemPrompt = `You are an experienced head teacher writing an exam analysis report for a class. Base every statement on the statistics provided. Cover overall performance, per-subject strengths and weaknesses, and concrete suggestions for the next teaching cycle. Write in clear, professional prose.`

// ClassReport returns the stored report for the pair, generating and storing
// a new one when absent. The boolean reports whether the content was served
// from storage. force discards any stored report first.
func (s *ReportService) ClassReport(ctx context.Context, classID, examID int64, force bool) (string, bool, error) {
	if classID <= 0 || examID <= 0 {
		return "", false, appErrors.ErrValidation
	}

	if force {
		if err := s.reports.Delete(ctx, classID, examID); err != nil {
			return "", false, err
		}
	} else {
		stored, err := s.reports.Get(ctx, classID, examID)
		if err != nil {
			return "", false, err
		}
		if stored != nil {
			return stored.ReportContent, true, nil
		}
	}

	prompt, err := s.buildPrompt(ctx, classID, examID)
	if err != nil {
		return "", false, err
	}

	start := time.Now()
	content, err := s.model.Complete(ctx, llm.Request{Model: s.cfg.Model, System: reportSystemPrompt, User: prompt})
	if err != nil {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "error", time.Since(start))
		return "", false, err
	}
	s.metrics.ObserveLLMRequest(s.cfg.Model, "ok", time.Since(start))

	content = strings.TrimSpace(content)
	if s.persistable(content) {
		if err := s.reports.Upsert(ctx, classID, examID, content); err != nil {
			s.logger.Warn("failed to store class report",
				zap.Int64("class_id", classID), zap.Int64("exam_id", examID), zap.Error(err))
		}
	}

	return content, false, nil
}

// StreamClassReport streams a fresh report to emit and schedules detached
// persistence of the accumulated text once the stream ends. The upstream
// call is detached from the caller's context so a client disconnect does not
// abort generation midway.
func (s *ReportService) StreamClassReport(ctx context.Context, classID, examID int64, emit llm.EmitFunc) error {
	if classID <= 0 || examID <= 0 {
		return appErrors.ErrValidation
	}

	prompt, err := s.buildPrompt(ctx, classID, examID)
	if err != nil {
		return err
	}

	upstream := context.WithoutCancel(ctx)

	start := time.Now()
	body, err := s.model.Stream(upstream, llm.Request{Model: s.cfg.Model, System: reportSystemPrompt, User: prompt})
	if err != nil {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "error", time.Since(start))
		return err
	}
	defer body.Close()

	full, runErr := llm.NewRelay().Run(upstream, body, emit)
	if runErr != nil {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "stream_error", time.Since(start))
	} else {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "ok", time.Since(start))
	}

	full = strings.TrimSpace(full)
	if s.persistable(full) {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    persistReportJobType,
			Payload: reportPersistPayload{ClassID: classID, ExamID: examID, Content: full},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Error("failed to enqueue report persistence",
				zap.Int64("class_id", classID), zap.Int64("exam_id", examID), zap.Error(err))
		}
	}

	return runErr
}

// HandlePersistJob is the queue handler for detached report persistence.
func (s *ReportService) HandlePersistJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reportPersistPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}
	return s.reports.Upsert(ctx, payload.ClassID, payload.ExamID, payload.Content)
}

// ReportPDF renders the stored report as a downloadable PDF.
func (s *ReportService) ReportPDF(ctx context.Context, classID, examID int64) ([]byte, string, error) {
	if classID <= 0 || examID <= 0 {
		return nil, "", appErrors.ErrValidation
	}

	stored, err := s.reports.Get(ctx, classID, examID)
	if err != nil {
		return nil, "", err
	}
	if stored == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "no stored report for this class and exam")
	}

	class, err := s.classes.Get(ctx, classID)
	if err != nil {
		return nil, "", err
	}
	exam, err := s.classes.GetExam(ctx, examID)
	if err != nil {
		return nil, "", err
	}

	title := "Class Report"
	if class != nil && exam != nil {
		title = fmt.Sprintf("%s, %s", class.Name, exam.Name)
	}

	raw, err := export.RenderReport(export.ReportDocument{
		Title:       title,
		GeneratedAt: stored.UpdatedAt,
		Body:        stored.ReportContent,
	})
	if err != nil {
		return nil, "", fmt.Errorf("render report pdf: %w", err)
	}

	filename := fmt.Sprintf("class_report_%d_%d.pdf", classID, examID)
	return raw, filename, nil
}

// persistable rejects empty output and output carrying the failure sentinel,
// so a refusal or provider error text never becomes the cached report.
func (s *ReportService) persistable(content string) bool {
	return content != "" && !strings.Contains(content, s.cfg.FailureSentinel)
}

func (s *ReportService) buildPrompt(ctx context.Context, classID, examID int64) (string, error) {
	class, err := s.classes.Get(ctx, classID)
	if err != nil {
		return "", err
	}
	if class == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	exam, err := s.classes.GetExam(ctx, examID)
	if err != nil {
		return "", err
	}
	if exam == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}

	aggregates, err := s.scores.CourseAggregates(ctx, classID, examID)
	if err != nil {
		return "", err
	}
	if len(aggregates) == 0 {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no scores recorded for this class and exam")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Class: %s\nExam: %s (%s)\n\nSubject statistics:\n", class.Name, exam.Name, exam.ExamDate.Format("2006-01-02"))
	for _, agg := range aggregates {
		fmt.Fprintf(&b, "- %s: average %.1f / %.0f, highest %.1f, lowest %.1f, pass rate %.1f%% (%d students)\n",
			agg.CourseName, agg.Average, agg.FullScore, agg.Max, agg.Min, agg.PassRate, agg.Count)
	}
	b.WriteString("\nWrite the analysis report for this exam.")
	return b.String(), nil
}
