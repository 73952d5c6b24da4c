package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/models"
)

type MockOperationStore struct {
	mock.Mock
}

func (m *MockOperationStore) Create(ctx context.Context, op *models.SheetOperation) error {
	return m.Called(ctx, op).Error(0)
}

func (m *MockOperationStore) Finish(ctx context.Context, op *models.SheetOperation) error {
	return m.Called(ctx, op).Error(0)
}

type MockOperationPublisher struct {
	mock.Mock
}

func (m *MockOperationPublisher) PublishOperation(ctx context.Context, op *models.SheetOperation) error {
	return m.Called(ctx, op).Error(0)
}

func fixedTracker(store OperationStore, publisher OperationPublisher) *Tracker {
	tr := NewTracker(store, publisher, testLogger())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return tr
}

func TestTrackerCompleted(t *testing.T) {
	store := new(MockOperationStore)
	publisher := new(MockOperationPublisher)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	store.On("Finish", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishOperation", mock.Anything, mock.Anything).Return(nil)

	tr := fixedTracker(store, publisher)
	op := tr.Start(context.Background(), &models.SheetOperation{Platform: models.PlatformJu, Kind: models.OperationExport})
	assert.Equal(t, models.OperationRunning, op.Status)
	assert.NotEmpty(t, op.ID)

	tr.Finish(context.Background(), op, &Summary{Total: 4}, nil)
	assert.Equal(t, models.OperationCompleted, op.Status)
	assert.Equal(t, 4, op.SucceededRows)
	assert.Equal(t, time.Second, op.Duration())
	assert.Empty(t, op.Failures)

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestTrackerPartial(t *testing.T) {
	tr := fixedTracker(nil, nil)
	op := tr.Start(context.Background(), &models.SheetOperation{Kind: models.OperationUpdate})

	tr.Finish(context.Background(), op, &Summary{
		Total:    3,
		Failures: []models.FailedRow{{Key: "2", Error: "库存不足"}},
	}, nil)
	assert.Equal(t, models.OperationPartial, op.Status)
	assert.Equal(t, 2, op.SucceededRows)
	assert.Equal(t, 1, op.FailedRows)

	var failures []models.FailedRow
	require.NoError(t, json.Unmarshal(op.Failures, &failures))
	assert.Equal(t, "库存不足", failures[0].Error)
}

func TestTrackerFailed(t *testing.T) {
	tr := fixedTracker(nil, nil)
	op := tr.Start(context.Background(), &models.SheetOperation{Kind: models.OperationPublish})

	tr.Finish(context.Background(), op, nil, &flow.RemoteError{Op: "query items", Err: errors.New("登录失效")})
	assert.Equal(t, models.OperationFailed, op.Status)
	assert.Equal(t, "登录失效", op.ErrorMessage)

	op = tr.Start(context.Background(), &models.SheetOperation{Kind: models.OperationPublish})
	tr.Finish(context.Background(), op, nil, context.DeadlineExceeded)
	assert.Equal(t, "context deadline exceeded", op.ErrorMessage)
}

func TestTrackerSinkFailuresAreIgnored(t *testing.T) {
	store := new(MockOperationStore)
	publisher := new(MockOperationPublisher)
	store.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	store.On("Finish", mock.Anything, mock.Anything).Return(errors.New("db down"))
	publisher.On("PublishOperation", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	tr := fixedTracker(store, publisher)
	op := tr.Start(context.Background(), &models.SheetOperation{Kind: models.OperationExport})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.Finish(ctx, op, &Summary{Total: 1}, nil)
	assert.Equal(t, models.OperationCompleted, op.Status)
	publisher.AssertExpectations(t)
}
