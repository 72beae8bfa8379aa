package entity

import "time"

// Product representa un tipo de ítem del catálogo de la organización.
// Inmutable una vez referenciado por stock.
type Product struct {
	ID             string
	OrganizationID string
	Code           string // código único por organización
	Name           string
	BaseUnit       string // unidad base (UND, CAJA, ML...)
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
