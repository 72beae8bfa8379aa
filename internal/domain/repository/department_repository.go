package repository

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// DepartmentRepository catálogo de departamentos (solo lectura para el núcleo).
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Department, error)
}
