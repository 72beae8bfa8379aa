package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// EnsureStockRequest body para POST /api/stocks.
type EnsureStockRequest struct {
	DepartmentID string `json:"department_id"`
	ProductID    string `json:"product_id"`
	MinimumStock *int64 `json:"minimum_stock,omitempty"`
	MaximumStock *int64 `json:"maximum_stock,omitempty"`
	ReorderPoint *int64 `json:"reorder_point,omitempty"`
	Location     string `json:"location,omitempty"`
}

// StockResponse configuración del stock más sus cantidades derivadas.
type StockResponse struct {
	ID           string              `json:"id"`
	DepartmentID string              `json:"department_id"`
	ProductID    string              `json:"product_id"`
	MinimumStock *int64              `json:"minimum_stock,omitempty"`
	MaximumStock *int64              `json:"maximum_stock,omitempty"`
	ReorderPoint *int64              `json:"reorder_point,omitempty"`
	Location     string              `json:"location,omitempty"`
	Summary      entity.StockSummary `json:"summary"`
	IsLow        bool                `json:"is_low"`
}

// ReceiveBatchRequest body para POST /api/stocks/:id/batches.
type ReceiveBatchRequest struct {
	LotNumber       string          `json:"lot_number"`
	Quantity        int64           `json:"quantity"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	ManufactureDate *time.Time      `json:"manufacture_date,omitempty"`
	Supplier        string          `json:"supplier,omitempty"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	Location        string          `json:"location,omitempty"`
}

// AdjustBatchRequest body para POST /api/batches/:id/adjust. Delta firmado.
type AdjustBatchRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// QuantityRequest body para reservar o liberar stock (FIFO).
type QuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

// BatchResponse lote del libro.
type BatchResponse struct {
	ID                string          `json:"id"`
	StockID           string          `json:"stock_id"`
	LotNumber         string          `json:"lot_number"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	Supplier          string          `json:"supplier,omitempty"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	TotalQuantity     int64           `json:"total_quantity"`
	AvailableQuantity int64           `json:"available_quantity"`
	ReservedQuantity  int64           `json:"reserved_quantity"`
	IncomingQuantity  int64           `json:"incoming_quantity"`
	Status            string          `json:"status"`
	IsActive          bool            `json:"is_active"`
	ReceivedAt        time.Time       `json:"received_at"`
}

// AllocationDTO cantidad movida sobre un lote.
type AllocationDTO struct {
	BatchID  string `json:"batch_id"`
	Quantity int64  `json:"quantity"`
}

// AllocationResponse resultado de una reserva o liberación FIFO.
type AllocationResponse struct {
	StockID     string              `json:"stock_id"`
	Quantity    int64               `json:"quantity"`
	Allocations []AllocationDTO     `json:"allocations"`
	Summary     entity.StockSummary `json:"summary"`
}

// NewBatchResponse mapea la entidad a su respuesta.
func NewBatchResponse(b *entity.StockBatch) BatchResponse {
	return BatchResponse{
		ID:                b.ID,
		StockID:           b.StockID,
		LotNumber:         b.LotNumber,
		ExpiryDate:        b.ExpiryDate,
		Supplier:          b.Supplier,
		CostPrice:         b.CostPrice,
		SellingPrice:      b.SellingPrice,
		TotalQuantity:     b.TotalQuantity,
		AvailableQuantity: b.AvailableQuantity,
		ReservedQuantity:  b.ReservedQuantity,
		IncomingQuantity:  b.IncomingQuantity,
		Status:            string(b.Status),
		IsActive:          b.IsActive,
		ReceivedAt:        b.ReceivedAt,
	}
}
