package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-insight-api/internal/models"
)

// ScoreRepository exposes read-optimised queries over the grade tables.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository instantiates the repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// LatestExamForClass returns the most recent exam that has scores recorded
// for the given class, or nil when the class has none.
func (r *ScoreRepository) LatestExamForClass(ctx context.Context, classID int64) (*models.Exam, error) {
	const query = `SELECT e.id, e.name, e.exam_date FROM exams e
WHERE EXISTS (
    SELECT 1 FROM scores s JOIN students st ON st.id = s.student_id
    WHERE s.exam_id = e.id AND st.class_id = $1
)
ORDER BY e.exam_date DESC, e.id DESC LIMIT 1`

	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest exam for class: %w", err)
	}
	return &exam, nil
}

// ExamCountForClass counts distinct exams with scores for the class.
func (r *ScoreRepository) ExamCountForClass(ctx context.Context, classID int64) (int, error) {
	const query = `SELECT COUNT(DISTINCT s.exam_id) FROM scores s
JOIN students st ON st.id = s.student_id WHERE st.class_id = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count exams for class: %w", err)
	}
	return count, nil
}

// CriticalScores lists scores of the exam that fall inside [low, high].
func (r *ScoreRepository) CriticalScores(ctx context.Context, classID, examID int64, low, high float64) ([]models.FocusStudent, error) {
	const query = `SELECT st.id AS student_id, st.name AS student_name, c.name AS course_name, s.score
FROM scores s
JOIN students st ON st.id = s.student_id
JOIN courses c ON c.id = s.course_id
WHERE st.class_id = $1 AND s.exam_id = $2 AND s.score >= $3 AND s.score <= $4
ORDER BY s.score ASC, st.id ASC`

	var rows []models.FocusStudent
	if err := r.db.SelectContext(ctx, &rows, query, classID, examID, low, high); err != nil {
		return nil, fmt.Errorf("query critical scores: %w", err)
	}
	return rows, nil
}

// ExamAveragesByStudent returns each student's mean score per exam, ordered
// chronologically within each student.
func (r *ScoreRepository) ExamAveragesByStudent(ctx context.Context, classID int64) ([]models.StudentExamAverage, error) {
	const query = `SELECT st.id AS student_id, st.name AS student_name, e.id AS exam_id, e.exam_date, AVG(s.score) AS avg_score
FROM scores s
JOIN students st ON st.id = s.student_id
JOIN exams e ON e.id = s.exam_id
WHERE st.class_id = $1
GROUP BY st.id, st.name, e.id, e.exam_date
ORDER BY st.id ASC, e.exam_date ASC, e.id ASC`

	var rows []models.StudentExamAverage
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("query exam averages by student: %w", err)
	}
	return rows, nil
}

// CourseSpreads returns per student and course max and min marks across all
// exams, keeping only spreads above the threshold.
func (r *ScoreRepository) CourseSpreads(ctx context.Context, classID int64, threshold float64) ([]models.CourseSpread, error) {
	const query = `SELECT st.id AS student_id, st.name AS student_name, c.id AS course_id, c.name AS course_name,
MAX(s.score) AS max_score, MIN(s.score) AS min_score
FROM scores s
JOIN students st ON st.id = s.student_id
JOIN courses c ON c.id = s.course_id
WHERE st.class_id = $1
GROUP BY st.id, st.name, c.id, c.name
HAVING MAX(s.score) - MIN(s.score) > $2
ORDER BY MAX(s.score) - MIN(s.score) DESC`

	var rows []models.CourseSpread
	if err := r.db.SelectContext(ctx, &rows, query, classID, threshold); err != nil {
		return nil, fmt.Errorf("query course spreads: %w", err)
	}
	return rows, nil
}

// ImbalancedStudents lists subject scores below passLine belonging to
// students whose exam total exceeds the class mean total.
func (r *ScoreRepository) ImbalancedStudents(ctx context.Context, classID, examID int64, passLine float64) ([]models.ImbalancedStudent, error) {
	const query = `WITH totals AS (
    SELECT s.student_id, SUM(s.score) AS total_score
    FROM scores s JOIN students st ON st.id = s.student_id
    WHERE st.class_id = $1 AND s.exam_id = $2
    GROUP BY s.student_id
)
SELECT st.id AS student_id, st.name AS student_name, c.name AS course_name, s.score, t.total_score
FROM scores s
JOIN totals t ON t.student_id = s.student_id
JOIN students st ON st.id = s.student_id
JOIN courses c ON c.id = s.course_id
WHERE s.exam_id = $2 AND s.score < $3
  AND t.total_score > (SELECT AVG(total_score) FROM totals)
ORDER BY s.score ASC, st.id ASC`

	var rows []models.ImbalancedStudent
	if err := r.db.SelectContext(ctx, &rows, query, classID, examID, passLine); err != nil {
		return nil, fmt.Errorf("query imbalanced students: %w", err)
	}
	return rows, nil
}

// ExamCourses lists the papers of an exam with their full marks.
func (r *ScoreRepository) ExamCourses(ctx context.Context, examID int64) ([]models.ExamCourse, error) {
	const query = `SELECT ec.exam_id, ec.course_id, c.name AS course_name, ec.full_score
FROM exam_courses ec JOIN courses c ON c.id = ec.course_id
WHERE ec.exam_id = $1 ORDER BY ec.course_id ASC`

	var rows []models.ExamCourse
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("query exam courses: %w", err)
	}
	return rows, nil
}

// CourseScoresDesc returns every mark on one paper, highest first.
func (r *ScoreRepository) CourseScoresDesc(ctx context.Context, examID, courseID int64) ([]float64, error) {
	const query = `SELECT s.score FROM scores s
WHERE s.exam_id = $1 AND s.course_id = $2 ORDER BY s.score DESC`

	var scores []float64
	if err := r.db.SelectContext(ctx, &scores, query, examID, courseID); err != nil {
		return nil, fmt.Errorf("query course scores: %w", err)
	}
	return scores, nil
}

// ClassCourseScores returns every (course, score) pair of the class exam.
func (r *ScoreRepository) ClassCourseScores(ctx context.Context, classID, examID int64) ([]models.CourseScore, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, s.score
FROM scores s
JOIN students st ON st.id = s.student_id
JOIN courses c ON c.id = s.course_id
WHERE st.class_id = $1 AND s.exam_id = $2
ORDER BY c.id ASC`

	var rows []models.CourseScore
	if err := r.db.SelectContext(ctx, &rows, query, classID, examID); err != nil {
		return nil, fmt.Errorf("query class course scores: %w", err)
	}
	return rows, nil
}

// StudentScores returns the student's per-course marks for one exam.
func (r *ScoreRepository) StudentScores(ctx context.Context, studentID, examID int64) ([]models.CourseScore, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, s.score
FROM scores s JOIN courses c ON c.id = s.course_id
WHERE s.student_id = $1 AND s.exam_id = $2
ORDER BY c.id ASC`

	var rows []models.CourseScore
	if err := r.db.SelectContext(ctx, &rows, query, studentID, examID); err != nil {
		return nil, fmt.Errorf("query student scores: %w", err)
	}
	return rows, nil
}

// ClassCourseStats returns class mean and population deviation per course of
// the exam.
func (r *ScoreRepository) ClassCourseStats(ctx context.Context, classID, examID int64) ([]models.CourseStat, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name,
AVG(s.score) AS mean_score, COALESCE(STDDEV_POP(s.score), 0) AS std_dev
FROM scores s
JOIN students st ON st.id = s.student_id
JOIN courses c ON c.id = s.course_id
WHERE st.class_id = $1 AND s.exam_id = $2
GROUP BY c.id, c.name
ORDER BY c.id ASC`

	var rows []models.CourseStat
	if err := r.db.SelectContext(ctx, &rows, query, classID, examID); err != nil {
		return nil, fmt.Errorf("query class course stats: %w", err)
	}
	return rows, nil
}

// CourseAggregates returns per-course class statistics for one exam,
// including the pass rate against 60 percent of the full mark.
func (r *ScoreRepository) CourseAggregates(ctx context.Context, classID, examID int64) ([]models.CourseAggregate, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, ec.full_score,
AVG(s.score) AS avg_score, MAX(s.score) AS max_score, MIN(s.score) AS min_score,
AVG(CASE WHEN s.score >= ec.full_score * 0.6 THEN 1.0 ELSE 0.0 END) * 100 AS pass_rate,
COUNT(*) AS score_count
FROM scores s
JOIN students st ON st.id = s.student_id
JOIN courses c ON c.id = s.course_id
JOIN exam_courses ec ON ec.exam_id = s.exam_id AND ec.course_id = s.course_id
WHERE st.class_id = $1 AND s.exam_id = $2
GROUP BY c.id, c.name, ec.full_score
ORDER BY c.id ASC`

	var rows []models.CourseAggregate
	if err := r.db.SelectContext(ctx, &rows, query, classID, examID); err != nil {
		return nil, fmt.Errorf("query course aggregates: %w", err)
	}
	return rows, nil
}

// Student fetches one student, or nil when absent.
func (r *ScoreRepository) Student(ctx context.Context, studentID int64) (*models.Student, error) {
	const query = `SELECT id, name, class_id FROM students WHERE id = $1`

	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &student, nil
}

// StudentScoreHistory returns every mark of the student across exams,
// chronological, with the full mark of each paper.
func (r *ScoreRepository) StudentScoreHistory(ctx context.Context, studentID int64) ([]models.StudentScoreRow, error) {
	const query = `SELECT e.id AS exam_id, e.name AS exam_name, e.exam_date, c.name AS course_name, s.score, ec.full_score
FROM scores s
JOIN exams e ON e.id = s.exam_id
JOIN courses c ON c.id = s.course_id
JOIN exam_courses ec ON ec.exam_id = s.exam_id AND ec.course_id = s.course_id
WHERE s.student_id = $1
ORDER BY e.exam_date ASC, e.id ASC, c.id ASC`

	var rows []models.StudentScoreRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("query student score history: %w", err)
	}
	return rows, nil
}
