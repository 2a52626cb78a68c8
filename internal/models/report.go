package models

import "time"

// ClassReport is a generated narrative stored per (class, exam).
type ClassReport struct {
	ID            int64     `db:"id" json:"id"`
	ClassID       int64     `db:"class_id" json:"class_id"`
	ExamID        int64     `db:"exam_id" json:"exam_id"`
	ReportContent string    `db:"report_content" json:"report_content"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentComment is a generated per-student evaluation.
type StudentComment struct {
	ID        int64     `db:"id" json:"id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	Comment   string    `db:"comment" json:"comment"`
	Style     string    `db:"style" json:"style"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
