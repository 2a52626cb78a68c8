package models

import "time"

// FocusStudent is a student flagged with a single score of interest.
type FocusStudent struct {
	StudentID   int64   `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	CourseName  string  `db:"course_name" json:"course_name"`
	Score       float64 `db:"score" json:"score"`
}

// RegressingStudent is flagged when the latest exam average falls well below
// the student's overall average.
type RegressingStudent struct {
	StudentID     int64   `json:"student_id"`
	StudentName   string  `json:"student_name"`
	OverallAvg    float64 `json:"overall_avg"`
	LatestAvg     float64 `json:"latest_avg"`
	DropAmount    float64 `json:"drop_amount"`
	ExamsIncluded int     `json:"exams_included"`
}

// FluctuatingStudent is flagged per course when the score spread across exams
// is wide.
type FluctuatingStudent struct {
	StudentID   int64   `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	CourseID    int64   `db:"course_id" json:"course_id"`
	CourseName  string  `db:"course_name" json:"course_name"`
	MaxScore    float64 `db:"max_score" json:"max_score"`
	MinScore    float64 `db:"min_score" json:"min_score"`
	Spread      float64 `db:"spread" json:"spread"`
}

// ImbalancedStudent has a strong overall total but a weak single subject.
type ImbalancedStudent struct {
	StudentID   int64   `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	CourseName  string  `db:"course_name" json:"course_name"`
	Score       float64 `db:"score" json:"score"`
	TotalScore  float64 `db:"total_score" json:"total_score"`
}

// FocusGroups aggregates the attention-worthy students of a class, keyed to
// its most recent exam.
type FocusGroups struct {
	ClassID     int64                `json:"class_id"`
	ExamID      int64                `json:"exam_id"`
	Critical    []FocusStudent       `json:"critical"`
	Regressing  []RegressingStudent  `json:"regressing"`
	Fluctuating []FluctuatingStudent `json:"fluctuating"`
	Imbalanced  []ImbalancedStudent  `json:"imbalanced"`
}

// CourseQuality captures psychometric indicators for one exam paper.
type CourseQuality struct {
	CourseID       int64   `json:"course_id"`
	CourseName     string  `json:"course_name"`
	FullScore      float64 `json:"full_score"`
	Count          int     `json:"count"`
	Average        float64 `json:"average"`
	Max            float64 `json:"max"`
	Min            float64 `json:"min"`
	StdDev         float64 `json:"std_dev"`
	Difficulty     float64 `json:"difficulty"`
	Discrimination float64 `json:"discrimination"`
	GroupSize      int     `json:"group_size"`
}

// ExamQuality bundles per-course quality indicators for one exam.
type ExamQuality struct {
	ExamID   int64           `json:"exam_id"`
	ExamName string          `json:"exam_name"`
	Courses  []CourseQuality `json:"courses"`
}

// DistributionBand is one grade band with its head count.
type DistributionBand struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CourseDistribution holds the band breakdown of one course.
type CourseDistribution struct {
	CourseID   int64              `json:"course_id"`
	CourseName string             `json:"course_name"`
	Bands      []DistributionBand `json:"bands"`
}

// ScoreDistribution is the per-course band breakdown for a class exam.
type ScoreDistribution struct {
	ClassID int64                `json:"class_id"`
	ExamID  int64                `json:"exam_id"`
	Courses []CourseDistribution `json:"courses"`
}

// SubjectZScore positions one subject score against the class.
type SubjectZScore struct {
	CourseID     int64   `json:"course_id"`
	CourseName   string  `json:"course_name"`
	Score        float64 `json:"score"`
	ClassAverage float64 `json:"class_average"`
	ClassStdDev  float64 `json:"class_std_dev"`
	ZScore       float64 `json:"z_score"`
}

// StudentProfile standardises a student's latest exam against their class.
type StudentProfile struct {
	StudentID   int64           `json:"student_id"`
	StudentName string          `json:"student_name"`
	ClassID     int64           `json:"class_id"`
	ExamID      int64           `json:"exam_id"`
	Subjects    []SubjectZScore `json:"subjects"`
	TotalScore  float64         `json:"total_score"`
}

// StudentExamAverage is a repository row: one student's mean over one exam.
type StudentExamAverage struct {
	StudentID   int64     `db:"student_id"`
	StudentName string    `db:"student_name"`
	ExamID      int64     `db:"exam_id"`
	ExamDate    time.Time `db:"exam_date"`
	Average     float64   `db:"avg_score"`
}

// CourseSpread is a repository row: a student's max and min on one course.
type CourseSpread struct {
	StudentID   int64   `db:"student_id"`
	StudentName string  `db:"student_name"`
	CourseID    int64   `db:"course_id"`
	CourseName  string  `db:"course_name"`
	MaxScore    float64 `db:"max_score"`
	MinScore    float64 `db:"min_score"`
}

// CourseAggregate is a repository row of per-course class statistics.
type CourseAggregate struct {
	CourseID   int64   `db:"course_id"`
	CourseName string  `db:"course_name"`
	FullScore  float64 `db:"full_score"`
	Average    float64 `db:"avg_score"`
	Max        float64 `db:"max_score"`
	Min        float64 `db:"min_score"`
	PassRate   float64 `db:"pass_rate"`
	Count      int     `db:"score_count"`
}

// CourseStat is a repository row with class mean and population deviation for
// one course of one exam.
type CourseStat struct {
	CourseID   int64   `db:"course_id"`
	CourseName string  `db:"course_name"`
	Mean       float64 `db:"mean_score"`
	StdDev     float64 `db:"std_dev"`
}

// CourseScore is a repository row pairing one mark with its course.
type CourseScore struct {
	CourseID   int64   `db:"course_id"`
	CourseName string  `db:"course_name"`
	Score      float64 `db:"score"`
}

// StudentScoreRow is a repository row of one mark within a student's history.
type StudentScoreRow struct {
	ExamID     int64     `db:"exam_id"`
	ExamName   string    `db:"exam_name"`
	ExamDate   time.Time `db:"exam_date"`
	CourseName string    `db:"course_name"`
	Score      float64   `db:"score"`
	FullScore  float64   `db:"full_score"`
}

// SystemMetrics represents aggregated runtime indicators for ops endpoints.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
