package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
)

// CommentStore persists generated student comments.
type CommentStore interface {
	Insert(ctx context.Context, studentID int64, comment, style string) error
	Latest(ctx context.Context, studentID int64) (*models.StudentComment, error)
}

// StudentReader supplies the student record and full score history.
type StudentReader interface {
	Student(ctx context.Context, studentID int64) (*models.Student, error)
	StudentScoreHistory(ctx context.Context, studentID int64) ([]models.StudentScoreRow, error)
}

type commentCompleter interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// CommentServiceConfig tunes comment generation.
type CommentServiceConfig struct {
	Model    string
	CacheTTL time.Duration
}

// CommentService generates personalised term comments from a student's
// score history.
type CommentService struct {
	comments CommentStore
	students StudentReader
	classes  ClassReader
	model    commentCompleter
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      CommentServiceConfig
}

// NewCommentService constructs the service.
func NewCommentService(comments CommentStore, students StudentReader, classes ClassReader, model commentCompleter, cache *CacheService, metrics *MetricsService, cfg CommentServiceConfig, logger *zap.Logger) *CommentService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		comments: comments,
		students: students,
		classes:  classes,
		model:    model,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

const commentSystemPrompt = `You are a seasoned head teacher who reads score data to understand how a student is doing and writes warm, honest and constructive term comments.`

func commentCacheKey(studentID int64) string {
	return fmt.Sprintf("ai_comment:%d", studentID)
}

// StudentComment returns the comment for a student, reusing the cached or
// most recently stored one unless force regeneration is requested.
func (s *CommentService) StudentComment(ctx context.Context, studentID int64, style string, force bool) (string, bool, error) {
	if studentID <= 0 {
		return "", false, appErrors.ErrValidation
	}

	key := commentCacheKey(studentID)
	if force {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to drop cached comment", zap.Int64("student_id", studentID), zap.Error(err))
		}
	} else {
		var cached string
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, true, nil
		}
		stored, err := s.comments.Latest(ctx, studentID)
		if err != nil {
			return "", false, err
		}
		if stored != nil {
			if err := s.cache.Set(ctx, key, stored.Comment, s.cfg.CacheTTL); err != nil {
				s.logger.Warn("failed to cache stored comment", zap.Int64("student_id", studentID), zap.Error(err))
			}
			return stored.Comment, true, nil
		}
	}

	prompt, err := s.buildPrompt(ctx, studentID, style)
	if err != nil {
		return "", false, err
	}

	start := time.Now()
	content, err := s.model.Complete(ctx, llm.Request{Model: s.cfg.Model, System: commentSystemPrompt, User: prompt})
	if err != nil {
		s.metrics.ObserveLLMRequest(s.cfg.Model, "error", time.Since(start))
		return "", false, err
	}
	s.metrics.ObserveLLMRequest(s.cfg.Model, "ok", time.Since(start))

	content = strings.TrimSpace(content)
	if content == "" {
		return "", false, appErrors.Clone(appErrors.ErrUpstreamRejected, "model returned an empty comment")
	}

	if err := s.comments.Insert(ctx, studentID, content, style); err != nil {
		s.logger.Warn("failed to store student comment", zap.Int64("student_id", studentID), zap.Error(err))
	}
	if err := s.cache.Set(ctx, key, content, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache student comment", zap.Int64("student_id", studentID), zap.Error(err))
	}

	return content, false, nil
}

// LatestComment returns the most recently stored comment for a student.
func (s *CommentService) LatestComment(ctx context.Context, studentID int64) (*models.StudentComment, error) {
	if studentID <= 0 {
		return nil, appErrors.ErrValidation
	}
	stored, err := s.comments.Latest(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no comment generated for this student yet")
	}
	return stored, nil
}

func (s *CommentService) buildPrompt(ctx context.Context, studentID int64, style string) (string, error) {
	student, err := s.students.Student(ctx, studentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	history, err := s.students.StudentScoreHistory(ctx, studentID)
	if err != nil {
		return "", err
	}

	className := ""
	if class, err := s.classes.Get(ctx, student.ClassID); err == nil && class != nil {
		className = class.Name
	}

	chronological := make([]float64, 0, len(history))
	var total float64
	for _, row := range history {
		chronological = append(chronological, row.Score)
		total += row.Score
	}
	avg := 0.0
	if len(history) > 0 {
		avg = total / float64(len(history))
	}

	strong, weak := subjectExtremes(history)
	trend := trendFromScores(chronological)

	var b strings.Builder
	fmt.Fprintf(&b, "Student: %s\n", student.Name)
	if className != "" {
		fmt.Fprintf(&b, "Class: %s\n", className)
	}
	fmt.Fprintf(&b, "Average score: %.1f\n", avg)
	fmt.Fprintf(&b, "Score trend: %s\n", trend.Description)
	fmt.Fprintf(&b, "Strong subjects: %s\n", strong)
	fmt.Fprintf(&b, "Weak subjects: %s\n", weak)
	b.WriteString("Exam record index:")
	b.WriteString(examHistoryDigest(history))
	b.WriteString("\n\nWrite a detailed 150-200 word term comment. Open by recognising progress and strengths, then name the weaknesses and give concrete suggestions. Keep the tone warm and natural.")
	if style != "" {
		fmt.Fprintf(&b, " Preferred style: %s.", style)
	}
	return b.String(), nil
}

type scoreTrend struct {
	Label       string
	Description string
}

// trendFromScores fits a least-squares line through the chronological scores
// and classifies the slope together with the first-to-last delta. Fewer than
// three data points count as steady.
func trendFromScores(scores []float64) scoreTrend {
	if len(scores) < 3 {
		return scoreTrend{Label: "steady", Description: "scores have stayed steady"}
	}

	n := float64(len(scores))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range scores {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	diff := scores[len(scores)-1] - scores[0]

	switch {
	case slope > 2 || diff > 10:
		return scoreTrend{Label: "strong improvement", Description: fmt.Sprintf("rising overall, up %.1f points recently", diff)}
	case slope > 0.5 || diff > 5:
		return scoreTrend{Label: "improving", Description: fmt.Sprintf("climbing steadily, up %.1f points recently", diff)}
	case slope < -2 || diff < -10:
		return scoreTrend{Label: "sharp decline", Description: fmt.Sprintf("falling overall, down %.1f points recently", math.Abs(diff))}
	case slope < -0.5 || diff < -5:
		return scoreTrend{Label: "declining", Description: fmt.Sprintf("slipping, down %.1f points recently", math.Abs(diff))}
	default:
		return scoreTrend{Label: "steady", Description: fmt.Sprintf("holding steady within %.1f points", math.Abs(diff))}
	}
}

// subjectExtremes names the two strongest and two weakest subjects by the
// student's per-course averages.
func subjectExtremes(rows []models.StudentScoreRow) (string, string) {
	if len(rows) == 0 {
		return "none yet", "none yet"
	}

	type courseAvg struct {
		name  string
		sum   float64
		count int
	}
	byCourse := map[string]*courseAvg{}
	order := make([]string, 0)
	for _, row := range rows {
		agg, ok := byCourse[row.CourseName]
		if !ok {
			agg = &courseAvg{name: row.CourseName}
			byCourse[row.CourseName] = agg
			order = append(order, row.CourseName)
		}
		agg.sum += row.Score
		agg.count++
	}

	aggs := make([]*courseAvg, 0, len(order))
	for _, name := range order {
		aggs = append(aggs, byCourse[name])
	}
	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].sum/float64(aggs[i].count) > aggs[j].sum/float64(aggs[j].count)
	})

	topN := 2
	if len(aggs) < topN {
		topN = len(aggs)
	}
	strong := make([]string, 0, topN)
	for _, agg := range aggs[:topN] {
		strong = append(strong, agg.name)
	}
	weak := make([]string, 0, topN)
	for _, agg := range aggs[len(aggs)-topN:] {
		weak = append(weak, agg.name)
	}
	return strings.Join(strong, ", "), strings.Join(weak, ", ")
}

// examHistoryDigest compresses the history into one prompt line per exam.
func examHistoryDigest(rows []models.StudentScoreRow) string {
	if len(rows) == 0 {
		return "\n- no exam records yet"
	}

	type examEntry struct {
		name  string
		date  time.Time
		marks []string
	}
	byExam := map[int64]*examEntry{}
	order := make([]int64, 0)
	for _, row := range rows {
		entry, ok := byExam[row.ExamID]
		if !ok {
			entry = &examEntry{name: row.ExamName, date: row.ExamDate}
			byExam[row.ExamID] = entry
			order = append(order, row.ExamID)
		}
		entry.marks = append(entry.marks, fmt.Sprintf("%s %.0f/%.0f", row.CourseName, row.Score, row.FullScore))
	}

	var b strings.Builder
	for _, id := range order {
		entry := byExam[id]
		fmt.Fprintf(&b, "\n- %s (%s): %s", entry.name, entry.date.Format("2006-01-02"), strings.Join(entry.marks, ", "))
	}
	return b.String()
}
