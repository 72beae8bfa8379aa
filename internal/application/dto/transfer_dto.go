package dto

import (
	"time"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// CreateTransferItemRequest línea solicitada.
type CreateTransferItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

// CreateTransferRequest body para POST /api/transfers.
type CreateTransferRequest struct {
	Code                   string                      `json:"code"`
	Title                  string                      `json:"title"`
	RequestingDepartmentID string                      `json:"requesting_department_id"`
	SupplyingDepartmentID  string                      `json:"supplying_department_id"`
	Priority               string                      `json:"priority,omitempty"`
	Reason                 string                      `json:"reason,omitempty"`
	Notes                  string                      `json:"notes,omitempty"`
	Items                  []CreateTransferItemRequest `json:"items"`
}

// ApproveItemRequest sin cantidad se aprueba lo solicitado.
type ApproveItemRequest struct {
	ApprovedQuantity *int64 `json:"approved_quantity,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// PickRequest lote escogido por el operador del departamento proveedor.
type PickRequest struct {
	BatchID  string `json:"batch_id"`
	Quantity int64  `json:"quantity"`
}

// PrepareItemRequest body para preparar un ítem.
type PrepareItemRequest struct {
	Batches []PickRequest `json:"batches"`
	Notes   string        `json:"notes,omitempty"`
}

// BatchReceiptRequest cantidad recibida de un lote despachado.
type BatchReceiptRequest struct {
	TransferBatchID  string `json:"transfer_batch_id"`
	ReceivedQuantity int64  `json:"received_quantity"`
}

// DeliverItemRequest los lotes no listados se reciben completos.
type DeliverItemRequest struct {
	Receipts []BatchReceiptRequest `json:"receipts,omitempty"`
	Notes    string                `json:"notes,omitempty"`
}

// CancelRequest el motivo es obligatorio.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// NotesRequest body genérico con notas opcionales.
type NotesRequest struct {
	Notes string `json:"notes,omitempty"`
}

// TransferListRequest filtros de listado por departamento.
type TransferListRequest struct {
	PageRequest
	Status   string `query:"status"`
	Priority string `query:"priority"`
}

// NamedRef referencia con nombre resuelto para lectura.
type NamedRef struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

// TransferBatchDTO lote escogido de un ítem.
type TransferBatchDTO struct {
	ID               string     `json:"id"`
	StockBatchID     string     `json:"stock_batch_id"`
	LotNumber        string     `json:"lot_number"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	Quantity         int64      `json:"quantity"`
	ReceivedQuantity *int64     `json:"received_quantity,omitempty"`
}

// TransferItemDTO ítem con producto resuelto.
type TransferItemDTO struct {
	ID                string             `json:"id"`
	Product           NamedRef           `json:"product"`
	RequestedQuantity int64              `json:"requested_quantity"`
	ApprovedQuantity  *int64             `json:"approved_quantity,omitempty"`
	PreparedQuantity  *int64             `json:"prepared_quantity,omitempty"`
	ReceivedQuantity  *int64             `json:"received_quantity,omitempty"`
	Status            string             `json:"status"`
	Notes             string             `json:"notes,omitempty"`
	CancelReason      string             `json:"cancel_reason,omitempty"`
	ApprovedAt        *time.Time         `json:"approved_at,omitempty"`
	PreparedAt        *time.Time         `json:"prepared_at,omitempty"`
	DeliveredAt       *time.Time         `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	Batches           []TransferBatchDTO `json:"batches"`
}

// TransferResponse cabecera de traslado; Items solo viene en el detalle.
type TransferResponse struct {
	ID                   string              `json:"id"`
	Code                 string              `json:"code"`
	Title                string              `json:"title"`
	RequestingDepartment NamedRef            `json:"requesting_department"`
	SupplyingDepartment  NamedRef            `json:"supplying_department"`
	Status               string              `json:"status"`
	Priority             string              `json:"priority"`
	Reason               string              `json:"reason,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	RequestedBy          entity.UserSnapshot `json:"requested_by"`
	RequestedAt          time.Time           `json:"requested_at"`
	ApprovedAt           *time.Time          `json:"approved_at,omitempty"`
	PreparedAt           *time.Time          `json:"prepared_at,omitempty"`
	DeliveredAt          *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason         string              `json:"cancel_reason,omitempty"`
	ItemCount            int                 `json:"item_count"`
	Items                []TransferItemDTO   `json:"items,omitempty"`
}

// TransferListResponse página de traslados.
type TransferListResponse struct {
	Items []TransferResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// TransferHistoryDTO fila del historial.
type TransferHistoryDTO struct {
	ID         string              `json:"id"`
	ItemID     string              `json:"item_id,omitempty"`
	Action     string              `json:"action"`
	FromStatus string              `json:"from_status,omitempty"`
	ToStatus   string              `json:"to_status"`
	Actor      entity.UserSnapshot `json:"actor"`
	Notes      string              `json:"notes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// DispatchNoteDTO datos planos para la nota de despacho en PDF.
type DispatchNoteDTO struct {
	Transfer    TransferResponse
	GeneratedAt time.Time
	GeneratedBy entity.UserSnapshot
}
