package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
)

const (
	// Scores in [criticalLow, criticalHigh] sit just under or just over the
	// pass line and respond best to targeted attention.
	criticalLow  = 55.0
	criticalHigh = 62.0

	regressionDrop    = 5.0
	fluctuationSpread = 10.0
	imbalancePassLine = 60.0

	topBottomShare = 0.27
)

// ScoreReader describes the persistence layer required by AnalyticsService.
type ScoreReader interface {
	LatestExamForClass(ctx context.Context, classID int64) (*models.Exam, error)
	ExamCountForClass(ctx context.Context, classID int64) (int, error)
	CriticalScores(ctx context.Context, classID, examID int64, low, high float64) ([]models.FocusStudent, error)
	ExamAveragesByStudent(ctx context.Context, classID int64) ([]models.StudentExamAverage, error)
	CourseSpreads(ctx context.Context, classID int64, threshold float64) ([]models.CourseSpread, error)
	ImbalancedStudents(ctx context.Context, classID, examID int64, passLine float64) ([]models.ImbalancedStudent, error)
	ExamCourses(ctx context.Context, examID int64) ([]models.ExamCourse, error)
	CourseScoresDesc(ctx context.Context, examID, courseID int64) ([]float64, error)
	ClassCourseScores(ctx context.Context, classID, examID int64) ([]models.CourseScore, error)
	StudentScores(ctx context.Context, studentID, examID int64) ([]models.CourseScore, error)
	ClassCourseStats(ctx context.Context, classID, examID int64) ([]models.CourseStat, error)
	Student(ctx context.Context, studentID int64) (*models.Student, error)
}

// ExamReader resolves exam descriptors.
type ExamReader interface {
	GetExam(ctx context.Context, examID int64) (*models.Exam, error)
}

// AnalyticsService derives cohort analytics from raw scores.
type AnalyticsService struct {
	scores   ScoreReader
	exams    ExamReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(scores ScoreReader, exams ExamReader, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{scores: scores, exams: exams, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// FocusGroups flags attention-worthy students of a class against its latest
// exam. The four categories are always computed fresh.
func (s *AnalyticsService) FocusGroups(ctx context.Context, classID int64) (*models.FocusGroups, error) {
	if classID <= 0 {
		return nil, appErrors.ErrValidation
	}

	exam, err := s.scores.LatestExamForClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class has no scored exams")
	}

	examCount, err := s.scores.ExamCountForClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.FocusGroups{
		ClassID:     classID,
		ExamID:      exam.ID,
		Critical:    []models.FocusStudent{},
		Regressing:  []models.RegressingStudent{},
		Fluctuating: []models.FluctuatingStudent{},
		Imbalanced:  []models.ImbalancedStudent{},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.scores.CriticalScores(gctx, classID, exam.ID, criticalLow, criticalHigh)
		if err != nil {
			return err
		}
		if rows != nil {
			result.Critical = rows
		}
		return nil
	})

	g.Go(func() error {
		rows, err := s.scores.ImbalancedStudents(gctx, classID, exam.ID, imbalancePassLine)
		if err != nil {
			return err
		}
		if rows != nil {
			result.Imbalanced = rows
		}
		return nil
	})

	// Trend categories need at least two exams to compare.
	if examCount >= 2 {
		g.Go(func() error {
			averages, err := s.scores.ExamAveragesByStudent(gctx, classID)
			if err != nil {
				return err
			}
			result.Regressing = regressingFromAverages(averages)
			return nil
		})

		g.Go(func() error {
			spreads, err := s.scores.CourseSpreads(gctx, classID, fluctuationSpread)
			if err != nil {
				return err
			}
			for _, row := range spreads {
				result.Fluctuating = append(result.Fluctuating, models.FluctuatingStudent{
					StudentID:   row.StudentID,
					StudentName: row.StudentName,
					CourseID:    row.CourseID,
					CourseName:  row.CourseName,
					MaxScore:    row.MaxScore,
					MinScore:    row.MinScore,
					Spread:      round2(row.MaxScore - row.MinScore),
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.metrics.ObserveDBQuery("analytics_focus_groups", time.Since(start))

	return result, nil
}

// regressingFromAverages flags students whose latest exam mean trails their
// overall mean by more than the threshold. The overall mean is the average
// of per-exam means, latest exam included.
func regressingFromAverages(rows []models.StudentExamAverage) []models.RegressingStudent {
	flagged := []models.RegressingStudent{}
	if len(rows) == 0 {
		return flagged
	}

	// Rows arrive grouped by student and chronological within each student.
	var (
		current []models.StudentExamAverage
		flush   func()
	)
	flush = func() {
		if len(current) < 2 {
			return
		}
		var sum float64
		for _, r := range current {
			sum += r.Average
		}
		overall := sum / float64(len(current))
		latest := current[len(current)-1].Average
		drop := overall - latest
		if drop > regressionDrop {
			flagged = append(flagged, models.RegressingStudent{
				StudentID:     current[0].StudentID,
				StudentName:   current[0].StudentName,
				OverallAvg:    round2(overall),
				LatestAvg:     round2(latest),
				DropAmount:    round2(drop),
				ExamsIncluded: len(current),
			})
		}
	}

	for _, row := range rows {
		if len(current) > 0 && current[0].StudentID != row.StudentID {
			flush()
			current = current[:0]
		}
		current = append(current, row)
	}
	flush()

	return flagged
}

// ExamQuality computes psychometric indicators per course of an exam.
func (s *AnalyticsService) ExamQuality(ctx context.Context, examID int64) (*models.ExamQuality, error) {
	if examID <= 0 {
		return nil, appErrors.ErrValidation
	}

	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}

	courses, err := s.scores.ExamCourses(ctx, examID)
	if err != nil {
		return nil, err
	}

	quality := &models.ExamQuality{ExamID: exam.ID, ExamName: exam.Name, Courses: []models.CourseQuality{}}
	for _, course := range courses {
		scores, err := s.scores.CourseScoresDesc(ctx, examID, course.CourseID)
		if err != nil {
			return nil, err
		}
		quality.Courses = append(quality.Courses, courseQuality(course, scores))
	}

	return quality, nil
}

// courseQuality derives indicators from marks sorted highest first.
func courseQuality(course models.ExamCourse, scores []float64) models.CourseQuality {
	q := models.CourseQuality{
		CourseID:   course.CourseID,
		CourseName: course.CourseName,
		FullScore:  course.FullScore,
		Count:      len(scores),
	}
	if len(scores) == 0 {
		return q
	}

	q.Max = scores[0]
	q.Min = scores[len(scores)-1]
	q.Average = round2(mean(scores))
	q.StdDev = round2(populationStdDev(scores))

	if course.FullScore > 0 {
		q.Difficulty = round2(mean(scores) / course.FullScore)
	}

	q.GroupSize = int(math.Floor(float64(len(scores)) * topBottomShare))
	if q.GroupSize > 0 && course.FullScore > 0 {
		top := mean(scores[:q.GroupSize])
		bottom := mean(scores[len(scores)-q.GroupSize:])
		q.Discrimination = round2((top - bottom) / course.FullScore)
	}

	return q
}

// Distribution buckets the class exam scores per course into grade bands.
// The boolean reports whether the payload came from cache.
func (s *AnalyticsService) Distribution(ctx context.Context, classID, examID int64) (*models.ScoreDistribution, bool, error) {
	if classID <= 0 || examID <= 0 {
		return nil, false, appErrors.ErrValidation
	}

	cacheKey := fmt.Sprintf("analytics:distribution:%d:%d", classID, examID)
	var cached models.ScoreDistribution
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	rows, err := s.scores.ClassCourseScores(ctx, classID, examID)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("analytics_distribution", time.Since(start))

	dist := &models.ScoreDistribution{ClassID: classID, ExamID: examID, Courses: []models.CourseDistribution{}}

	var (
		currentID    int64
		currentName  string
		courseScores []float64
	)
	flush := func() {
		if len(courseScores) == 0 {
			return
		}
		dist.Courses = append(dist.Courses, models.CourseDistribution{
			CourseID:   currentID,
			CourseName: currentName,
			Bands:      bandBreakdown(courseScores),
		})
	}
	for _, row := range rows {
		if len(courseScores) > 0 && row.CourseID != currentID {
			flush()
			courseScores = courseScores[:0]
		}
		currentID = row.CourseID
		currentName = row.CourseName
		courseScores = append(courseScores, row.Score)
	}
	flush()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dist, s.cacheTTL); err != nil {
			s.logger.Warn("cache distribution", zap.Error(err))
		}
	}

	return dist, false, nil
}

func bandBreakdown(scores []float64) []models.DistributionBand {
	bands := []models.DistributionBand{
		{Label: "fail"},
		{Label: "pass"},
		{Label: "good"},
		{Label: "excellent"},
	}
	for _, score := range scores {
		switch {
		case score < 60:
			bands[0].Count++
		case score < 75:
			bands[1].Count++
		case score < 85:
			bands[2].Count++
		default:
			bands[3].Count++
		}
	}
	total := len(scores)
	for i := range bands {
		if total > 0 {
			bands[i].Percentage = round2(float64(bands[i].Count) / float64(total) * 100)
		}
	}
	return bands
}

// StudentProfile standardises the student's latest exam against their class.
// The boolean reports whether the payload came from cache.
func (s *AnalyticsService) StudentProfile(ctx context.Context, studentID int64) (*models.StudentProfile, bool, error) {
	if studentID <= 0 {
		return nil, false, appErrors.ErrValidation
	}

	student, err := s.scores.Student(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	if student == nil {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	exam, err := s.scores.LatestExamForClass(ctx, student.ClassID)
	if err != nil {
		return nil, false, err
	}
	if exam == nil {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "class has no scored exams")
	}

	cacheKey := fmt.Sprintf("analytics:profile:%d:%d", studentID, exam.ID)
	var cached models.StudentProfile
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.scores.ClassCourseStats(ctx, student.ClassID, exam.ID)
	if err != nil {
		return nil, false, err
	}
	statsByCourse := make(map[int64]models.CourseStat, len(stats))
	for _, st := range stats {
		statsByCourse[st.CourseID] = st
	}

	marks, err := s.scores.StudentScores(ctx, studentID, exam.ID)
	if err != nil {
		return nil, false, err
	}

	profile := &models.StudentProfile{
		StudentID:   student.ID,
		StudentName: student.Name,
		ClassID:     student.ClassID,
		ExamID:      exam.ID,
		Subjects:    []models.SubjectZScore{},
	}
	for _, mark := range marks {
		stat := statsByCourse[mark.CourseID]
		var z float64
		if stat.StdDev > 0 {
			z = round2((mark.Score - stat.Mean) / stat.StdDev)
		}
		profile.Subjects = append(profile.Subjects, models.SubjectZScore{
			CourseID:     mark.CourseID,
			CourseName:   mark.CourseName,
			Score:        mark.Score,
			ClassAverage: round2(stat.Mean),
			ClassStdDev:  round2(stat.StdDev),
			ZScore:       z,
		})
		profile.TotalScore += mark.Score
	}
	profile.TotalScore = round2(profile.TotalScore)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, profile, s.cacheTTL); err != nil {
			s.logger.Warn("cache student profile", zap.Error(err))
		}
	}

	return profile, false, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
