package models

import "time"

// Student is a pupil enrolled in a class.
type Student struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	ClassID int64  `db:"class_id" json:"class_id"`
}

// Class groups students under a head teacher.
type Class struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	HeadTeacherID int64  `db:"head_teacher_id" json:"head_teacher_id"`
}

// Course is a taught subject.
type Course struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Exam is a single examination event.
type Exam struct {
	ID       int64     `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	ExamDate time.Time `db:"exam_date" json:"exam_date"`
}

// ExamCourse links an exam to a course with the full mark for that paper.
type ExamCourse struct {
	ExamID     int64   `db:"exam_id" json:"exam_id"`
	CourseID   int64   `db:"course_id" json:"course_id"`
	CourseName string  `db:"course_name" json:"course_name"`
	FullScore  float64 `db:"full_score" json:"full_score"`
}

// Score is one student's mark on one course of one exam.
type Score struct {
	StudentID int64   `db:"student_id" json:"student_id"`
	ExamID    int64   `db:"exam_id" json:"exam_id"`
	CourseID  int64   `db:"course_id" json:"course_id"`
	Score     float64 `db:"score" json:"score"`
}
