package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/JonasWeigert/PawTrack/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Well-known metadata keys shared by all billing audit entries.
const (
	MetaActorID    = "actor_id"
	MetaAction     = "action"
	MetaTargetType = "target_type"
	MetaTargetID   = "target_id"
)

// Sink appends administrative action records. Implementations must be safe
// to call from request handlers; failures stay inside the sink.
type Sink interface {
	Record(ctx context.Context, severity, message string, metadata map[string]any)
}

// GormSink persists audit entries to the audit_events table.
type GormSink struct {
	db *gorm.DB
}

// NewSink creates an audit sink backed by GORM.
func NewSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Record appends one audit entry. Actor/action/target keys are lifted out of
// the metadata map into indexed columns; the full map is kept as JSON. Write
// failures are logged and swallowed so an audit problem never fails the
// administrative action it describes.
func (s *GormSink) Record(ctx context.Context, severity, message string, metadata map[string]any) {
	event := models.AuditEvent{
		UUID:     uuid.NewString(),
		Severity: severity,
		Message:  message,
	}

	if v, ok := metadata[MetaActorID]; ok {
		switch id := v.(type) {
		case uint:
			event.ActorID = id
		case int:
			event.ActorID = uint(id)
		}
	}
	if v, ok := metadata[MetaAction].(string); ok {
		event.Action = v
	}
	if v, ok := metadata[MetaTargetType].(string); ok {
		event.TargetType = v
	}
	if v, ok := metadata[MetaTargetID]; ok {
		event.TargetID = fmt.Sprintf("%v", v)
	}

	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			log.Printf("audit: failed to marshal metadata for %q: %v", message, err)
		} else {
			event.MetadataJSON = string(raw)
		}
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Printf("audit: failed to record %q: %v", message, err)
	}
}

// Recent returns the newest audit entries for the admin console.
func (s *GormSink) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.AuditEvent
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
