// Package services – AuditService
//
// Every caregiver mutation appends an AuditLog entry in the same transaction
// as the change itself. The acting role travels in the request context
// (WithActor / ActorFrom) so services never depend on HTTP types.
package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
)

// Audit actions.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionTake     = "take"
	ActionSkip     = "skip"
	ActionUndo     = "undo"
	ActionNote     = "note"
	ActionFall     = "fall"
	ActionSeedDemo = "seed_demo"
)

// Audited entity types.
const (
	EntityPatient    = "patient"
	EntityMedication = "medication"
	EntityDose       = "dose_event"
	EntityFall       = "fall_event"
	EntitySystem     = "system"
)

type actorKey struct{}

// WithActor returns ctx carrying the acting role.
func WithActor(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, actorKey{}, role)
}

// ActorFrom returns the acting role stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// AuditService reads and writes the audit trail.
type AuditService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// Record appends an entry outside of any business transaction.
func (s *AuditService) Record(ctx context.Context, action, entityType, entityID string, meta map[string]any) error {
	return record(ctx, s.DB, s.Clock, action, entityType, entityID, meta)
}

// ListRecent returns up to limit entries, newest first, optionally filtered
// by entity type. limit is clamped to [1, 500] with 100 as default.
func (s *AuditService) ListRecent(ctx context.Context, entityType string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return repo.ListAudit(ctx, s.DB, entityType, limit)
}

// record writes an audit row through db, which may be a transaction.
func record(ctx context.Context, db *gorm.DB, clk clock.Clock, action, entityType, entityID string, meta map[string]any) error {
	entry := &domain.AuditLog{
		At:         stamp(clk.Now()),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorRole:  ActorFrom(ctx),
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		entry.Meta = datatypes.JSON(b)
	}
	return repo.InsertAudit(ctx, db, entry)
}
