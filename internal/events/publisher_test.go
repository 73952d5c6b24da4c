package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campaign-sheet-service/internal/models"
)

type MockStream struct {
	mock.Mock
}

func (m *MockStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(subject, data)
	if ack := args.Get(0); ack != nil {
		return ack.(*jetstream.PubAck), args.Error(1)
	}
	return nil, args.Error(1)
}

func testPublisher(js streamPublisher) *Publisher {
	return &Publisher{js: js, logger: logrus.NewEntry(logrus.New())}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "campaign.operation.export", Subject(models.OperationExport))
	assert.Equal(t, "campaign.operation.article_images", Subject(models.OperationArticles))
}

func TestPublishOperation(t *testing.T) {
	stream := new(MockStream)
	var published []byte
	stream.On("Publish", "campaign.operation.update", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(&jetstream.PubAck{Stream: StreamName}, nil)

	started := time.Now().Add(-3 * time.Second)
	done := started.Add(2 * time.Second)
	op := &models.SheetOperation{
		ID:            uuid.New(),
		Platform:      models.PlatformTaoQingCang,
		Kind:          models.OperationUpdate,
		Status:        models.OperationPartial,
		TotalRows:     5,
		SucceededRows: 4,
		FailedRows:    1,
		StartedAt:     started,
		CompletedAt:   &done,
	}

	require.NoError(t, testPublisher(stream).PublishOperation(context.Background(), op))
	stream.AssertExpectations(t)

	var event OperationEvent
	require.NoError(t, json.Unmarshal(published, &event))
	assert.Equal(t, op.ID.String(), event.OperationID)
	assert.Equal(t, "taoqingcang", event.Platform)
	assert.Equal(t, "PARTIAL", event.Status)
	assert.Equal(t, 1, event.FailedRows)
	assert.Equal(t, int64(2000), event.DurationMs)
}

func TestPublishOperationError(t *testing.T) {
	stream := new(MockStream)
	stream.On("Publish", "campaign.operation.export", mock.Anything).Return(nil, assert.AnError)

	err := testPublisher(stream).PublishOperation(context.Background(), &models.SheetOperation{
		ID:   uuid.New(),
		Kind: models.OperationExport,
	})
	assert.ErrorIs(t, err, assert.AnError)
}
