package ports

import (
	"context"
	"time"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// Categorías de auditoría.
const (
	AuditCategoryTransfer  = "transfer"
	AuditCategoryInventory = "inventory"
)

// AuditEntry evento de negocio para el log de auditoría de la organización.
type AuditEntry struct {
	OrganizationID string
	Category       string
	Action         string
	EntityType     string
	EntityID       string
	Actor          entity.UserSnapshot
	Payload        map[string]any
	OccurredAt     time.Time
}

// AuditLogger define el puerto de salida hacia el log de auditoría.
// Se invoca después del commit; un fallo aquí no revierte la operación de negocio.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry) error
}
