package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campaign-sheet-service/internal/models"
)

func setupMockDB(t *testing.T) (*OperationRepository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewOperationRepository(db), mock
}

func TestCreateOperation(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "sheet_operations"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	op := &models.SheetOperation{
		ID:        id,
		Platform:  models.PlatformJu,
		Kind:      models.OperationExport,
		Status:    models.OperationRunning,
		StartedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), op))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishOperation(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sheet_operations" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	op := &models.SheetOperation{
		ID:            uuid.New(),
		Status:        models.OperationPartial,
		TotalRows:     3,
		SucceededRows: 2,
		FailedRows:    1,
	}
	require.NoError(t, repo.Finish(context.Background(), op))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOperations(t *testing.T) {
	repo, mock := setupMockDB(t)
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "sheet_operations" WHERE platform = $1`)).
		WithArgs("ju").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sheet_operations" WHERE platform = $1 ORDER BY started_at DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "platform", "kind", "status"}).
			AddRow(first.String(), "ju", "UPDATE", "COMPLETED").
			AddRow(second.String(), "ju", "EXPORT", "FAILED"))

	ops, total, err := repo.List(context.Background(), OperationListOptions{Platform: models.PlatformJu, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, ops, 2)
	assert.Equal(t, first, ops[0].ID)
	assert.Equal(t, models.OperationFailed, ops[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOperationNotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sheet_operations" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
