package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"formscore.org/internal/auth"
)

type auditStore struct {
	db *sql.DB
}

// Append is insert-only; the table carries no update or delete paths.
func (s *auditStore) Append(ctx context.Context, rec *auth.AuditRecord) error {
	before, err := marshalChange(rec.Before)
	if err != nil {
		return fmt.Errorf("marshal before: %w", err)
	}
	after, err := marshalChange(rec.After)
	if err != nil {
		return fmt.Errorf("marshal after: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_trail (id, entity_type, entity_id, action, actor_id, before, after, reason, occurred_at)
		values ($1, $2, $3, $4, nullif($5, ''), $6, $7, nullif($8, ''), $9)
	`, rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.ActorID, before, after, rec.Reason, rec.OccurredAt)
	return err
}

func marshalChange(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
