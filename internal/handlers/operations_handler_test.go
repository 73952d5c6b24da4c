package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campaign-sheet-service/internal/models"
	"campaign-sheet-service/internal/repository"
)

type MockOperationReader struct {
	mock.Mock
}

func (m *MockOperationReader) GetByID(ctx context.Context, id uuid.UUID) (*models.SheetOperation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SheetOperation), args.Error(1)
}

func (m *MockOperationReader) List(ctx context.Context, opts repository.OperationListOptions) ([]models.SheetOperation, int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]models.SheetOperation), args.Get(1).(int64), args.Error(2)
}

func operationsRouter(repo OperationReader) *gin.Engine {
	h := NewOperationsHandler(repo, testLogger())
	router := gin.New()
	router.GET("/operations", h.ListOperations)
	router.GET("/operations/:id", h.GetOperation)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListOperations(t *testing.T) {
	repo := new(MockOperationReader)
	ops := []models.SheetOperation{
		{ID: uuid.New(), Platform: models.PlatformTaoQiangGou, Kind: models.OperationUpdate, Status: models.OperationPartial},
	}
	repo.On("List", mock.Anything, repository.OperationListOptions{
		Platform: models.PlatformTaoQiangGou,
		Kind:     models.OperationUpdate,
		Limit:    10,
		Offset:   10,
	}).Return(ops, int64(25), nil).Once()

	w := get(operationsRouter(repo), "/operations?platform=tqg&kind=update&page=2&limit=10")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success    bool                    `json:"success"`
		Data       []models.SheetOperation `json:"data"`
		Pagination models.Pagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNext)
	assert.True(t, resp.Pagination.HasPrev)
	repo.AssertExpectations(t)
}

func TestListOperationsDefaultsAndLimits(t *testing.T) {
	repo := new(MockOperationReader)
	repo.On("List", mock.Anything, repository.OperationListOptions{Limit: 100}).
		Return([]models.SheetOperation{}, int64(0), nil).Once()

	w := get(operationsRouter(repo), "/operations?limit=1000")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(operationsRouter(repo), "/operations?platform=jd")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertExpectations(t)
}

func TestListOperationsStoreError(t *testing.T) {
	repo := new(MockOperationReader)
	repo.On("List", mock.Anything, mock.Anything).Return([]models.SheetOperation(nil), int64(0), errors.New("db down")).Once()

	w := get(operationsRouter(repo), "/operations")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetOperation(t *testing.T) {
	repo := new(MockOperationReader)
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&models.SheetOperation{ID: id, Kind: models.OperationExport}, nil).Once()
	missing := uuid.New()
	repo.On("GetByID", mock.Anything, missing).Return(nil, gorm.ErrRecordNotFound).Once()
	router := operationsRouter(repo)

	w := get(router, "/operations/"+id.String())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())

	w = get(router, "/operations/"+missing.String())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(router, "/operations/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperationsDisabled(t *testing.T) {
	router := operationsRouter(nil)

	w := get(router, "/operations")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "OPERATION_LOG_DISABLED", decodeError(t, w).Error.Code)
}
