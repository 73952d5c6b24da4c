package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campaign-sheet-service/internal/models"
)

// OperationRepository handles database operations for sheet operations
type OperationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// OperationListOptions filters ListOperations
type OperationListOptions struct {
	Platform models.Platform
	Kind     models.OperationKind
	Status   models.OperationStatus
	Limit    int
	Offset   int
}

// Create inserts a new operation
func (r *OperationRepository) Create(ctx context.Context, op *models.SheetOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// Finish stores the final state of an operation
func (r *OperationRepository) Finish(ctx context.Context, op *models.SheetOperation) error {
	completedAt := time.Now()
	if op.CompletedAt != nil {
		completedAt = *op.CompletedAt
	}
	updates := map[string]interface{}{
		"status":         op.Status,
		"total_rows":     op.TotalRows,
		"succeeded_rows": op.SucceededRows,
		"failed_rows":    op.FailedRows,
		"error_message":  op.ErrorMessage,
		"failures":       op.Failures,
		"completed_at":   &completedAt,
	}
	return r.db.WithContext(ctx).
		Model(&models.SheetOperation{}).
		Where("id = ?", op.ID).
		Updates(updates).Error
}

// GetByID retrieves an operation by ID
func (r *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SheetOperation, error) {
	var op models.SheetOperation
	if err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

// List retrieves recent operations, newest first
func (r *OperationRepository) List(ctx context.Context, opts OperationListOptions) ([]models.SheetOperation, int64, error) {
	var ops []models.SheetOperation
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SheetOperation{})
	if opts.Platform != "" {
		query = query.Where("platform = ?", opts.Platform)
	}
	if opts.Kind != "" {
		query = query.Where("kind = ?", opts.Kind)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if err := query.Order("started_at DESC").Find(&ops).Error; err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}
