package repository

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// ProductRepository catálogo de productos (solo lectura para el núcleo).
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
