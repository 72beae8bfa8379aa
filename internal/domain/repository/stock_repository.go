package repository

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// StockRepository define el puerto para la configuración de stock por departamento+producto.
// Las implementaciones devuelven (nil, nil) cuando la fila no existe.
type StockRepository interface {
	GetByID(ctx context.Context, id string) (*entity.DepartmentStock, error)
	GetByDepartmentAndProduct(ctx context.Context, departmentID, productID string) (*entity.DepartmentStock, error)
	// Ensure crea la fila (departamento, producto) si no existe y devuelve la vigente.
	// Nunca deja dos filas para el mismo par.
	Ensure(ctx context.Context, stock *entity.DepartmentStock) (*entity.DepartmentStock, error)
	ListByDepartment(ctx context.Context, departmentID string, limit, offset int) ([]*entity.DepartmentStock, error)
}
