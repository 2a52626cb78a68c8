package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepositoryInsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_comments (student_id, comment, style, created_at)")).
		WithArgs(int64(31), "A diligent term.", "encouraging").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), 31, "A diligent term.", "encouraging"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryLatest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommentRepository(db)

	created := time.Date(2026, 6, 30, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, comment, style, created_at")).
		WithArgs(int64(31)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "comment", "style", "created_at"}).
			AddRow(int64(5), int64(31), "A diligent term.", "encouraging", created))

	row, err := repo.Latest(context.Background(), 31)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "A diligent term.", row.Comment)
	assert.Equal(t, "encouraging", row.Style)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryLatestReturnsNilWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, comment, style, created_at")).
		WithArgs(int64(31)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "comment", "style", "created_at"}))

	row, err := repo.Latest(context.Background(), 31)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}
