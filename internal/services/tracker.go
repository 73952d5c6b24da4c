package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/models"
)

// Summary is what an operation record keeps of a run's outcomes
type Summary struct {
	Total    int
	Failures []models.FailedRow
}

func summarize[D any](outcomes []flow.Outcome[D], key func(D) string) *Summary {
	s := &Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if !o.Success {
			s.Failures = append(s.Failures, models.FailedRow{Key: key(o.Value), Error: o.ErrorMessage})
		}
	}
	return s
}

// OperationStore persists operation records
type OperationStore interface {
	Create(ctx context.Context, op *models.SheetOperation) error
	Finish(ctx context.Context, op *models.SheetOperation) error
}

// OperationPublisher announces finished operations
type OperationPublisher interface {
	PublishOperation(ctx context.Context, op *models.SheetOperation) error
}

// Tracker records operations. Both sinks are optional and their failures
// never fail the operation being tracked.
type Tracker struct {
	store     OperationStore
	publisher OperationPublisher
	logger    *logrus.Entry
	now       func() time.Time
}

// NewTracker creates a tracker. store and publisher may be nil.
func NewTracker(store OperationStore, publisher OperationPublisher, logger *logrus.Logger) *Tracker {
	return &Tracker{
		store:     store,
		publisher: publisher,
		logger:    logger.WithField("component", "operation-tracker"),
		now:       time.Now,
	}
}

// Start opens an operation record
func (t *Tracker) Start(ctx context.Context, op *models.SheetOperation) *models.SheetOperation {
	op.ID = uuid.New()
	op.Status = models.OperationRunning
	op.StartedAt = t.now()

	if t.store != nil {
		if err := t.store.Create(ctx, op); err != nil {
			t.logger.WithError(err).WithField("operation_id", op.ID.String()).Warn("Failed to record operation start")
		}
	}
	return op
}

// Finish closes an operation record with the run's summary or error
func (t *Tracker) Finish(ctx context.Context, op *models.SheetOperation, summary *Summary, runErr error) {
	completedAt := t.now()
	op.CompletedAt = &completedAt

	switch {
	case runErr != nil:
		op.Status = models.OperationFailed
		op.ErrorMessage = flow.Message(runErr)
		if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
			op.ErrorMessage = runErr.Error()
		}
	case summary != nil && len(summary.Failures) > 0:
		op.Status = models.OperationPartial
	default:
		op.Status = models.OperationCompleted
	}
	if summary != nil {
		op.TotalRows = summary.Total
		op.FailedRows = len(summary.Failures)
		op.SucceededRows = summary.Total - op.FailedRows
		if len(summary.Failures) > 0 {
			if data, err := json.Marshal(summary.Failures); err == nil {
				op.Failures = data
			}
		}
	}

	log := t.logger.WithFields(logrus.Fields{
		"operation_id": op.ID.String(),
		"platform":     string(op.Platform),
		"kind":         string(op.Kind),
		"status":       string(op.Status),
		"total":        op.TotalRows,
		"failed":       op.FailedRows,
		"duration_ms":  op.Duration().Milliseconds(),
	})
	log.Info("Operation finished")

	// the request context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	if t.store != nil {
		if err := t.store.Finish(ctx, op); err != nil {
			log.WithError(err).Warn("Failed to record operation result")
		}
	}
	if t.publisher != nil {
		if err := t.publisher.PublishOperation(ctx, op); err != nil {
			log.WithError(err).Warn("Failed to publish operation event")
		}
	}
}
