package entity

import "time"

// Department representa un departamento/servicio de la organización que mantiene inventario propio
// (farmacia, bodega central, urgencias...). Solicita y suministra traslados.
type Department struct {
	ID             string
	OrganizationID string
	Name           string
	Code           string // código único por organización
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
