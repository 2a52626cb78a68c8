package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
)

type stubCacheRepo struct {
	entries map[string][]byte
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{entries: map[string][]byte{}}
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(context.Context, string) error {
	s.entries = map[string][]byte{}
	return nil
}

type mockScoreReader struct {
	latestExam    *models.Exam
	examCount     int
	critical      []models.FocusStudent
	averages      []models.StudentExamAverage
	spreads       []models.CourseSpread
	imbalanced    []models.ImbalancedStudent
	examCourses   []models.ExamCourse
	courseScores  map[int64][]float64
	classScores   []models.CourseScore
	studentScores []models.CourseScore
	classStats    []models.CourseStat
	student       *models.Student

	criticalLowHigh struct{ low, high float64 }
	averagesCalled  bool
}

func (m *mockScoreReader) LatestExamForClass(context.Context, int64) (*models.Exam, error) {
	return m.latestExam, nil
}

func (m *mockScoreReader) ExamCountForClass(context.Context, int64) (int, error) {
	return m.examCount, nil
}

func (m *mockScoreReader) CriticalScores(_ context.Context, _, _ int64, low, high float64) ([]models.FocusStudent, error) {
	m.criticalLowHigh.low = low
	m.criticalLowHigh.high = high
	return m.critical, nil
}

func (m *mockScoreReader) ExamAveragesByStudent(context.Context, int64) ([]models.StudentExamAverage, error) {
	m.averagesCalled = true
	return m.averages, nil
}

func (m *mockScoreReader) CourseSpreads(context.Context, int64, float64) ([]models.CourseSpread, error) {
	return m.spreads, nil
}

func (m *mockScoreReader) ImbalancedStudents(context.Context, int64, int64, float64) ([]models.ImbalancedStudent, error) {
	return m.imbalanced, nil
}

func (m *mockScoreReader) ExamCourses(context.Context, int64) ([]models.ExamCourse, error) {
	return m.examCourses, nil
}

func (m *mockScoreReader) CourseScoresDesc(_ context.Context, _, courseID int64) ([]float64, error) {
	return m.courseScores[courseID], nil
}

func (m *mockScoreReader) ClassCourseScores(context.Context, int64, int64) ([]models.CourseScore, error) {
	return m.classScores, nil
}

func (m *mockScoreReader) StudentScores(context.Context, int64, int64) ([]models.CourseScore, error) {
	return m.studentScores, nil
}

func (m *mockScoreReader) ClassCourseStats(context.Context, int64, int64) ([]models.CourseStat, error) {
	return m.classStats, nil
}

func (m *mockScoreReader) Student(context.Context, int64) (*models.Student, error) {
	return m.student, nil
}

type mockExamReader struct {
	exam *models.Exam
}

func (m *mockExamReader) GetExam(context.Context, int64) (*models.Exam, error) {
	return m.exam, nil
}

func newAnalyticsFixture(scores *mockScoreReader, exams *mockExamReader) *AnalyticsService {
	cache := NewCacheService(newStubCacheRepo(), nil, time.Minute, nil)
	return NewAnalyticsService(scores, exams, cache, nil, time.Minute, nil)
}

func TestFocusGroupsUsesInclusiveCriticalBand(t *testing.T) {
	scores := &mockScoreReader{
		latestExam: &models.Exam{ID: 9},
		examCount:  1,
		critical: []models.FocusStudent{
			{StudentID: 1, StudentName: "Ana", CourseName: "Math", Score: 55},
			{StudentID: 2, StudentName: "Ben", CourseName: "Math", Score: 62},
		},
	}
	svc := newAnalyticsFixture(scores, &mockExamReader{})

	got, err := svc.FocusGroups(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 55.0, scores.criticalLowHigh.low)
	assert.Equal(t, 62.0, scores.criticalLowHigh.high)
	assert.Len(t, got.Critical, 2)
	assert.EqualValues(t, 9, got.ExamID)
}

func TestFocusGroupsSkipsTrendsWithSingleExam(t *testing.T) {
	scores := &mockScoreReader{latestExam: &models.Exam{ID: 3}, examCount: 1}
	svc := newAnalyticsFixture(scores, &mockExamReader{})

	got, err := svc.FocusGroups(context.Background(), 7)
	require.NoError(t, err)

	assert.False(t, scores.averagesCalled)
	assert.NotNil(t, got.Regressing)
	assert.Empty(t, got.Regressing)
	assert.NotNil(t, got.Fluctuating)
	assert.Empty(t, got.Fluctuating)
}

func TestFocusGroupsClassWithoutExams(t *testing.T) {
	svc := newAnalyticsFixture(&mockScoreReader{}, &mockExamReader{})

	_, err := svc.FocusGroups(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func examAvg(studentID int64, name string, examID int64, day int, avg float64) models.StudentExamAverage {
	return models.StudentExamAverage{
		StudentID:   studentID,
		StudentName: name,
		ExamID:      examID,
		ExamDate:    time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		Average:     avg,
	}
}

func TestRegressingOverallIncludesLatestExam(t *testing.T) {
	rows := []models.StudentExamAverage{
		// Overall (90+80+70)/3 = 80, latest 70, drop 10: flagged.
		examAvg(1, "Ana", 1, 1, 90), examAvg(1, "Ana", 2, 2, 80), examAvg(1, "Ana", 3, 3, 70),
		// Overall 85, latest 80, drop exactly 5: not flagged.
		examAvg(2, "Ben", 1, 1, 90), examAvg(2, "Ben", 2, 2, 80),
		// Single exam: never flagged.
		examAvg(3, "Cy", 3, 3, 20),
	}

	flagged := regressingFromAverages(rows)
	require.Len(t, flagged, 1)
	assert.EqualValues(t, 1, flagged[0].StudentID)
	assert.Equal(t, 80.0, flagged[0].OverallAvg)
	assert.Equal(t, 70.0, flagged[0].LatestAvg)
	assert.Equal(t, 10.0, flagged[0].DropAmount)
	assert.Equal(t, 3, flagged[0].ExamsIncluded)
}

func TestCourseQualityIndicators(t *testing.T) {
	course := models.ExamCourse{CourseID: 5, CourseName: "Math", FullScore: 100}
	scores := []float64{100, 90, 80, 80, 80, 80, 80, 80, 70, 60}

	q := courseQuality(course, scores)
	assert.Equal(t, 10, q.Count)
	assert.Equal(t, 100.0, q.Max)
	assert.Equal(t, 60.0, q.Min)
	assert.Equal(t, 80.0, q.Average)
	assert.Equal(t, 10.0, q.StdDev)
	assert.Equal(t, 0.8, q.Difficulty)
	assert.Equal(t, 2, q.GroupSize)
	assert.Equal(t, 0.3, q.Discrimination)
}

func TestCourseQualityDegenerateCases(t *testing.T) {
	course := models.ExamCourse{CourseID: 5, CourseName: "Math", FullScore: 100}

	empty := courseQuality(course, nil)
	assert.Equal(t, 0, empty.Count)
	assert.Zero(t, empty.Average)
	assert.Zero(t, empty.Discrimination)

	// Three takers: floor(3 * 0.27) = 0, discrimination stays zero.
	tiny := courseQuality(course, []float64{90, 80, 70})
	assert.Equal(t, 0, tiny.GroupSize)
	assert.Zero(t, tiny.Discrimination)
	assert.Equal(t, 80.0, tiny.Average)
}

func TestDistributionBandBoundaries(t *testing.T) {
	scores := &mockScoreReader{
		classScores: []models.CourseScore{
			{CourseID: 1, CourseName: "Math", Score: 59.9},
			{CourseID: 1, CourseName: "Math", Score: 60},
			{CourseID: 1, CourseName: "Math", Score: 74.9},
			{CourseID: 1, CourseName: "Math", Score: 75},
			{CourseID: 1, CourseName: "Math", Score: 84.9},
			{CourseID: 1, CourseName: "Math", Score: 85},
		},
	}
	svc := newAnalyticsFixture(scores, &mockExamReader{})

	dist, hit, err := svc.Distribution(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, dist.Courses, 1)

	bands := dist.Courses[0].Bands
	require.Len(t, bands, 4)
	assert.Equal(t, 1, bands[0].Count)
	assert.Equal(t, 2, bands[1].Count)
	assert.Equal(t, 2, bands[2].Count)
	assert.Equal(t, 1, bands[3].Count)
	assert.Equal(t, 16.67, bands[0].Percentage)
}

func TestDistributionSecondReadHitsCache(t *testing.T) {
	scores := &mockScoreReader{
		classScores: []models.CourseScore{{CourseID: 1, CourseName: "Math", Score: 80}},
	}
	svc := newAnalyticsFixture(scores, &mockExamReader{})

	_, hit, err := svc.Distribution(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.False(t, hit)

	again, hit, err := svc.Distribution(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, again.Courses, 1)
}

func TestStudentProfileZScores(t *testing.T) {
	scores := &mockScoreReader{
		student:    &models.Student{ID: 4, Name: "Dee", ClassID: 7},
		latestExam: &models.Exam{ID: 9},
		classStats: []models.CourseStat{
			{CourseID: 1, CourseName: "Math", Mean: 70, StdDev: 10},
			{CourseID: 2, CourseName: "Art", Mean: 80, StdDev: 0},
		},
		studentScores: []models.CourseScore{
			{CourseID: 1, CourseName: "Math", Score: 85},
			{CourseID: 2, CourseName: "Art", Score: 80},
		},
	}
	svc := newAnalyticsFixture(scores, &mockExamReader{})

	profile, hit, err := svc.StudentProfile(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, profile.Subjects, 2)

	assert.Equal(t, 1.5, profile.Subjects[0].ZScore)
	// Zero deviation pins the z-score to zero instead of dividing by it.
	assert.Zero(t, profile.Subjects[1].ZScore)
	assert.Equal(t, 165.0, profile.TotalScore)
}
