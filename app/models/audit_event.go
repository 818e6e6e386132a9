package models

import "time"

const (
	AuditSeverityInfo    = "info"
	AuditSeverityWarning = "warning"
	AuditSeverityError   = "error"
)

// AuditEvent is an append-only record of an administrative action and its
// outcome. Rows are never updated or deleted.
type AuditEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         string    `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Severity     string    `gorm:"type:varchar(16);not null;default:'info';index" json:"severity"`
	Message      string    `gorm:"type:varchar(255);not null" json:"message"`
	ActorID      uint      `gorm:"index" json:"actor_id"`
	Action       string    `gorm:"type:varchar(100);index" json:"action"`
	TargetType   string    `gorm:"type:varchar(50)" json:"target_type"`
	TargetID     string    `gorm:"type:varchar(191)" json:"target_id"`
	MetadataJSON string    `gorm:"type:longtext" json:"metadata_json"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
