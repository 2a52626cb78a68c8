package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-insight-api/internal/models"
)

// ClassRepository reads class and exam descriptors.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Get returns a class by id, or nil when absent.
func (r *ClassRepository) Get(ctx context.Context, classID int64) (*models.Class, error) {
	const query = `SELECT id, name, head_teacher_id FROM classes WHERE id = $1`

	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &class, nil
}

// GetExam returns an exam by id, or nil when absent.
func (r *ClassRepository) GetExam(ctx context.Context, examID int64) (*models.Exam, error) {
	const query = `SELECT id, name, exam_date FROM exams WHERE id = $1`

	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return &exam, nil
}

// HasTeacher reports whether the user heads the class.
func (r *ClassRepository) HasTeacher(ctx context.Context, classID, teacherID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1 AND head_teacher_id = $2)`

	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, teacherID); err != nil {
		return false, fmt.Errorf("check class teacher: %w", err)
	}
	return ok, nil
}
