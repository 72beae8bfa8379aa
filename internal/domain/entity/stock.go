package entity

import "time"

// DepartmentStock configuración de un producto en un departamento (una fila por par).
// No guarda cantidades: se derivan sumando lotes activos y no vencidos.
type DepartmentStock struct {
	ID                   string
	OrganizationID       string
	DepartmentID         string
	ProductID            string
	MinimumStock         *int64
	MaximumStock         *int64
	ReorderPoint         *int64
	DefaultWithdrawalQty *int64
	Location             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StockSummary agregado de cantidades de los lotes activos y no vencidos de un stock.
type StockSummary struct {
	StockID           string `json:"stock_id"`
	TotalQuantity     int64  `json:"total_quantity"`
	AvailableQuantity int64  `json:"available_quantity"`
	ReservedQuantity  int64  `json:"reserved_quantity"`
	IncomingQuantity  int64  `json:"incoming_quantity"`
	BatchCount        int    `json:"batch_count"`
}

// IsLow true si lo disponible está bajo el mínimo configurado. Sin mínimo nunca está bajo.
func (s *DepartmentStock) IsLow(summary StockSummary) bool {
	if s.MinimumStock == nil {
		return false
	}
	return summary.AvailableQuantity < *s.MinimumStock
}
