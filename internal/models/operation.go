package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OperationKind is the flow an operation ran
type OperationKind string

const (
	OperationExport   OperationKind = "EXPORT"
	OperationUpdate   OperationKind = "UPDATE"
	OperationPublish  OperationKind = "PUBLISH"
	OperationArticles OperationKind = "ARTICLE_IMAGES"
)

// OperationStatus tracks an operation run
type OperationStatus string

const (
	OperationRunning   OperationStatus = "RUNNING"
	OperationCompleted OperationStatus = "COMPLETED"
	OperationPartial   OperationStatus = "PARTIAL" // finished with failed rows
	OperationFailed    OperationStatus = "FAILED"
)

// FailedRow is one failed row kept in the operation history
type FailedRow struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SheetOperation is the audit record of one export, update or publish run
type SheetOperation struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Platform Platform        `gorm:"type:varchar(50);not null;index:idx_sheet_ops_platform" json:"platform"`
	Kind     OperationKind   `gorm:"type:varchar(50);not null;index:idx_sheet_ops_kind" json:"kind"`
	Status   OperationStatus `gorm:"type:varchar(50);not null;default:'RUNNING';index:idx_sheet_ops_status" json:"status"`

	// SessionHash identifies the back-office session without storing it
	SessionHash     string `gorm:"type:varchar(64);index" json:"sessionHash"`
	ActivityEnterID string `gorm:"type:varchar(255)" json:"activityEnterId,omitempty"`

	TotalRows     int `gorm:"default:0" json:"totalRows"`
	SucceededRows int `gorm:"default:0" json:"succeededRows"`
	FailedRows    int `gorm:"default:0" json:"failedRows"`

	ErrorMessage string         `gorm:"type:text" json:"errorMessage,omitempty"`
	Failures     datatypes.JSON `gorm:"type:jsonb" json:"failures,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for SheetOperation
func (SheetOperation) TableName() string {
	return "sheet_operations"
}

// Duration is how long the run took, zero while running
func (o *SheetOperation) Duration() time.Duration {
	if o.CompletedAt == nil {
		return 0
	}
	return o.CompletedAt.Sub(o.StartedAt)
}
