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

func TestReportRepositoryGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)

	updated := time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, exam_id, report_content, updated_at")).
		WithArgs(int64(7), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "exam_id", "report_content", "updated_at"}).
			AddRow(int64(3), int64(7), int64(9), "Overall the class improved.", updated))

	report, err := repo.Get(context.Background(), 7, 9)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "Overall the class improved.", report.ReportContent)
	assert.Equal(t, updated, report.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetReturnsNilWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, exam_id, report_content, updated_at")).
		WithArgs(int64(7), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "exam_id", "report_content", "updated_at"}))

	report, err := repo.Get(context.Background(), 7, 9)
	require.NoError(t, err)
	assert.Nil(t, report)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_class_reports (class_id, exam_id, report_content, updated_at)")).
		WithArgs(int64(7), int64(9), "Fresh analysis.").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Upsert(context.Background(), 7, 9, "Fresh analysis."))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ai_class_reports WHERE class_id = $1 AND exam_id = $2")).
		WithArgs(int64(7), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 7, 9))
	require.NoError(t, mock.ExpectationsWereMet())
}
