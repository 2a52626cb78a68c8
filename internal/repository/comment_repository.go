package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-insight-api/internal/models"
)

// CommentRepository persists generated student comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Insert appends a new comment row. Earlier comments stay as history.
func (r *CommentRepository) Insert(ctx context.Context, studentID int64, comment, style string) error {
	const query = `INSERT INTO ai_comments (student_id, comment, style, created_at)
VALUES ($1, $2, $3, NOW())`

	if _, err := r.db.ExecContext(ctx, query, studentID, comment, style); err != nil {
		return fmt.Errorf("insert student comment: %w", err)
	}
	return nil
}

// Latest returns the newest comment for a student, or nil when absent.
func (r *CommentRepository) Latest(ctx context.Context, studentID int64) (*models.StudentComment, error) {
	const query = `SELECT id, student_id, comment, style, created_at
FROM ai_comments WHERE student_id = $1
ORDER BY created_at DESC, id DESC LIMIT 1`

	var row models.StudentComment
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest student comment: %w", err)
	}
	return &row, nil
}
