package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"formscore.org/internal/ids"
	"formscore.org/internal/obs"
)

// Auditor appends records to the audit trail. A failed append never fails
// the calling operation: the miss is reported on the operational log and the
// primary transition proceeds.
type Auditor struct {
	store AuditStore
	log   *zap.Logger
	now   func() time.Time
}

// NewAuditor constructs an auditor. A nil logger falls back to the shared one.
func NewAuditor(store AuditStore, log *zap.Logger, now func() time.Time) *Auditor {
	if log == nil {
		log = obs.Logger()
	}
	if now == nil {
		now = time.Now
	}
	return &Auditor{store: store, log: log, now: now}
}

// Record appends one audit record, best-effort. Safe on a nil receiver so
// read-only components can skip wiring an auditor.
func (a *Auditor) Record(ctx context.Context, entityType, entityID, action, actorID string, before, after map[string]any, reason string) {
	if a == nil || a.store == nil {
		return
	}
	rec := &AuditRecord{
		ID:         ids.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		Before:     before,
		After:      after,
		Reason:     reason,
		OccurredAt: a.now().UTC(),
	}
	if err := a.store.Append(ctx, rec); err != nil {
		a.log.Error("audit append failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
