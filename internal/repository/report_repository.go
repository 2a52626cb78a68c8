package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-insight-api/internal/models"
)

// ReportRepository persists generated class reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Get returns the stored report for a (class, exam) pair, or nil when absent.
func (r *ReportRepository) Get(ctx context.Context, classID, examID int64) (*models.ClassReport, error) {
	const query = `SELECT id, class_id, exam_id, report_content, updated_at
FROM ai_class_reports WHERE class_id = $1 AND exam_id = $2`

	var report models.ClassReport
	if err := r.db.GetContext(ctx, &report, query, classID, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get class report: %w", err)
	}
	return &report, nil
}

// Upsert inserts or replaces the report for a (class, exam) pair.
func (r *ReportRepository) Upsert(ctx context.Context, classID, examID int64, content string) error {
	const query = `INSERT INTO ai_class_reports (class_id, exam_id, report_content, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (class_id, exam_id) DO UPDATE
SET report_content = EXCLUDED.report_content, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, classID, examID, content); err != nil {
		return fmt.Errorf("upsert class report: %w", err)
	}
	return nil
}

// Delete removes the stored report for a (class, exam) pair if present.
func (r *ReportRepository) Delete(ctx context.Context, classID, examID int64) error {
	const query = `DELETE FROM ai_class_reports WHERE class_id = $1 AND exam_id = $2`

	if _, err := r.db.ExecContext(ctx, query, classID, examID); err != nil {
		return fmt.Errorf("delete class report: %w", err)
	}
	return nil
}
