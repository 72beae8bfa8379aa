package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/traslados-api/internal/application/ports"
)

var _ ports.AuditLogger = (*AuditRepo)(nil)

// AuditRepo escribe el log de auditoría de la organización en audit_logs.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Se usa con el pool: la auditoría va después del commit.
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Record inserta la entrada. El payload se guarda como JSONB (codec JSON de pgx).
func (r *AuditRepo) Record(ctx context.Context, e ports.AuditEntry) error {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	query := `
		INSERT INTO audit_logs (id, organization_id, category, action, entity_type, entity_id,
			actor_id, actor_name, actor_role, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		uuid.New().String(), e.OrganizationID, e.Category, e.Action, e.EntityType, e.EntityID,
		e.Actor.UserID, e.Actor.Name, e.Actor.Role, payload, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
