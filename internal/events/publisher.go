// Package events publishes sheet operation events to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"

	"campaign-sheet-service/internal/models"
)

const (
	// StreamName holds every campaign sheet event
	StreamName = "CAMPAIGN_SHEET_EVENTS"

	subjectPrefix  = "campaign.operation."
	publishTimeout = 10 * time.Second
)

// OperationEvent is published when a sheet operation finishes
type OperationEvent struct {
	EventType     string    `json:"eventType"`
	OperationID   string    `json:"operationId"`
	Platform      string    `json:"platform"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	TotalRows     int       `json:"totalRows"`
	SucceededRows int       `json:"succeededRows"`
	FailedRows    int       `json:"failedRows"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	Timestamp     time.Time `json:"timestamp"`
}

// Subject returns the subject an operation kind is published on
func Subject(kind models.OperationKind) string {
	return subjectPrefix + strings.ToLower(string(kind))
}

type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher sends operation events
type Publisher struct {
	conn   *nats.Conn
	js     streamPublisher
	logger *logrus.Entry
}

// NewPublisher connects to NATS and makes sure the event stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	log := logger.WithField("component", "operation-events")

	nc, err := nats.Connect(natsURL,
		nats.Name("campaign-sheet-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectBufSize(8*1024*1024),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("Reconnected to NATS at %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("Disconnected from NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour * 7,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to ensure operation event stream (may already exist)")
	}

	return &Publisher{conn: nc, js: js, logger: log}, nil
}

// Close drains the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// PublishOperation publishes the final state of op
func (p *Publisher) PublishOperation(ctx context.Context, op *models.SheetOperation) error {
	event := OperationEvent{
		EventType:     Subject(op.Kind),
		OperationID:   op.ID.String(),
		Platform:      string(op.Platform),
		Kind:          string(op.Kind),
		Status:        string(op.Status),
		TotalRows:     op.TotalRows,
		SucceededRows: op.SucceededRows,
		FailedRows:    op.FailedRows,
		ErrorMessage:  op.ErrorMessage,
		DurationMs:    op.Duration().Milliseconds(),
		Timestamp:     time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode operation event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.js.Publish(ctx, event.EventType, data, jetstream.WithMsgID(event.OperationID)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}

	p.logger.WithFields(logrus.Fields{
		"operation_id": event.OperationID,
		"subject":      event.EventType,
		"status":       event.Status,
	}).Debug("Operation event published")
	return nil
}
