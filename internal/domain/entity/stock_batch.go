package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus estado de un lote.
type BatchStatus string

// Estados de lote.
const (
	BatchAvailable  BatchStatus = "AVAILABLE"
	BatchReserved   BatchStatus = "RESERVED"
	BatchQuarantine BatchStatus = "QUARANTINE"
	BatchDamaged    BatchStatus = "DAMAGED"
	BatchExpired    BatchStatus = "EXPIRED"
)

// ParseBatchStatus valida un estado de lote recibido como texto.
func ParseBatchStatus(s string) (BatchStatus, error) {
	switch st := BatchStatus(s); st {
	case BatchAvailable, BatchReserved, BatchQuarantine, BatchDamaged, BatchExpired:
		return st, nil
	default:
		return "", fmt.Errorf("estado de lote desconocido: %q", s)
	}
}

// StockBatch lote recibido de un producto en un departamento.
// Invariante: TotalQuantity = AvailableQuantity + ReservedQuantity.
// IncomingQuantity es stock en tránsito, todavía no utilizable.
type StockBatch struct {
	ID                string
	StockID           string
	LotNumber         string // único por stock
	ExpiryDate        *time.Time
	ManufactureDate   *time.Time
	Supplier          string
	CostPrice         decimal.Decimal
	SellingPrice      decimal.Decimal
	TotalQuantity     int64
	AvailableQuantity int64
	ReservedQuantity  int64
	IncomingQuantity  int64
	// HeldQuantity parte de lo reservado que sostienen ítems de traslado PREPARED.
	// No es columna: solo lo completa ListReserved.
	HeldQuantity int64
	Status       BatchStatus
	IsActive     bool
	Location     string
	ReceivedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FreeReserved reservado que no pertenece a ningún traslado preparado.
func (b *StockBatch) FreeReserved() int64 {
	return max(b.ReservedQuantity-b.HeldQuantity, 0)
}

// IsExpired true si el lote tiene fecha de vencimiento anterior a now o fue marcado EXPIRED.
func (b *StockBatch) IsExpired(now time.Time) bool {
	if b.Status == BatchExpired {
		return true
	}
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}

// CountsInSummary indica si el lote aporta a las cantidades derivadas del stock.
func (b *StockBatch) CountsInSummary(now time.Time) bool {
	return b.IsActive && !b.IsExpired(now)
}

// IsAllocatable lote elegible para reserva FIFO o selección manual.
func (b *StockBatch) IsAllocatable(now time.Time) bool {
	return b.IsActive && b.Status == BatchAvailable && b.AvailableQuantity > 0 && !b.IsExpired(now)
}

// CheckInvariant verifica total = disponible + reservado y cantidades no negativas.
func (b *StockBatch) CheckInvariant() error {
	if b.AvailableQuantity < 0 || b.ReservedQuantity < 0 || b.IncomingQuantity < 0 {
		return fmt.Errorf("lote %s: cantidad negativa (disp=%d res=%d inc=%d)",
			b.ID, b.AvailableQuantity, b.ReservedQuantity, b.IncomingQuantity)
	}
	if b.TotalQuantity != b.AvailableQuantity+b.ReservedQuantity {
		return fmt.Errorf("lote %s: total %d != disponible %d + reservado %d",
			b.ID, b.TotalQuantity, b.AvailableQuantity, b.ReservedQuantity)
	}
	return nil
}

// StatusAfterChange estado resultante tras mover cantidades entre disponible y reservado.
// Solo AVAILABLE y RESERVED se recalculan; los demás estados son manuales.
// Un lote agotado conserva su estado (se desactiva aparte).
func StatusAfterChange(current BatchStatus, available, reserved int64) BatchStatus {
	if current != BatchAvailable && current != BatchReserved {
		return current
	}
	if available > 0 {
		return BatchAvailable
	}
	if reserved > 0 {
		return BatchReserved
	}
	return current
}
