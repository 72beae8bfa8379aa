package entity

import (
	"fmt"
	"time"
)

// TransferStatus estado agregado del traslado (rollup de sus ítems).
type TransferStatus string

// Estados de traslado.
const (
	TransferPending   TransferStatus = "PENDING"
	TransferApproved  TransferStatus = "APPROVED"
	TransferPrepared  TransferStatus = "PREPARED"
	TransferPartial   TransferStatus = "PARTIAL"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// ParseTransferStatus valida un estado de traslado recibido como texto (filtros).
func ParseTransferStatus(s string) (TransferStatus, error) {
	switch st := TransferStatus(s); st {
	case TransferPending, TransferApproved, TransferPrepared, TransferPartial, TransferCompleted, TransferCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("estado de traslado desconocido: %q", s)
	}
}

// ItemStatus estado de un ítem del traslado.
type ItemStatus string

// Estados de ítem.
const (
	ItemPending   ItemStatus = "PENDING"
	ItemApproved  ItemStatus = "APPROVED"
	ItemPrepared  ItemStatus = "PREPARED"
	ItemDelivered ItemStatus = "DELIVERED"
	ItemCancelled ItemStatus = "CANCELLED"
)

// IsTerminal DELIVERED y CANCELLED no admiten más transiciones.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemDelivered || s == ItemCancelled
}

// Priority prioridad del traslado.
type Priority string

// Prioridades.
const (
	PriorityNormal   Priority = "NORMAL"
	PriorityUrgent   Priority = "URGENT"
	PriorityCritical Priority = "CRITICAL"
)

// ParsePriority valida la prioridad; vacío equivale a NORMAL.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityUrgent, PriorityCritical:
		return p, nil
	default:
		return "", fmt.Errorf("prioridad desconocida: %q", s)
	}
}

// Transfer cabecera de un traslado entre departamentos. Dueño de sus ítems e historial.
type Transfer struct {
	ID                   string
	OrganizationID       string
	Code                 string // único por organización
	Title                string
	RequestingDepartment string
	SupplyingDepartment  string
	Status               TransferStatus
	Priority             Priority
	Reason               string
	Notes                string
	RequestedBy          UserSnapshot
	RequestedAt          time.Time
	ApprovedAt           *time.Time
	PreparedAt           *time.Time
	DeliveredAt          *time.Time
	CancelledAt          *time.Time
	CancelReason         string
	Items                []*TransferItem
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Item busca un ítem por ID dentro del agregado.
func (t *Transfer) Item(itemID string) *TransferItem {
	for _, it := range t.Items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}

// ItemStatuses estados actuales de todos los ítems (entrada del rollup).
func (t *Transfer) ItemStatuses() []ItemStatus {
	out := make([]ItemStatus, 0, len(t.Items))
	for _, it := range t.Items {
		out = append(out, it.Status)
	}
	return out
}

// TransferItem línea por producto dentro de un traslado. Dueño de sus TransferBatch.
type TransferItem struct {
	ID                string
	TransferID        string
	ProductID         string
	RequestedQuantity int64
	ApprovedQuantity  *int64
	PreparedQuantity  *int64
	ReceivedQuantity  *int64
	Status            ItemStatus
	Notes             string
	CancelReason      string
	ApprovedAt        *time.Time
	PreparedAt        *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
	Batches           []*TransferBatch
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TransferBatch lote del departamento proveedor escogido para surtir un ítem.
// ReceivedQuantity puede ser menor que Quantity (faltante o daño en tránsito).
type TransferBatch struct {
	ID               string
	TransferItemID   string
	StockBatchID     string
	LotNumber        string
	Quantity         int64
	ReceivedQuantity *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Acciones registradas en el historial.
const (
	HistoryCreated           = "CREATED"
	HistoryApproved          = "APPROVED"
	HistoryPrepared          = "PREPARED"
	HistoryDelivered         = "DELIVERED"
	HistoryCancelled         = "CANCELLED"
	HistoryTransferCancelled = "TRANSFER_CANCELLED"
	HistoryStatusChanged     = "STATUS_CHANGED"
)

// TransferHistory fila del historial append-only; nunca se modifica.
type TransferHistory struct {
	ID         string
	TransferID string
	ItemID     string // vacío en transiciones de cabecera
	Action     string
	FromStatus string
	ToStatus   string
	Actor      UserSnapshot
	Notes      string
	CreatedAt  time.Time
}
