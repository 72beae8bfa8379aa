package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `id, organization_id, department_id, product_id, minimum_stock, maximum_stock,
	reorder_point, default_withdrawal_qty, location, created_at, updated_at`

func scanStock(row scanner) (*entity.DepartmentStock, error) {
	var s entity.DepartmentStock
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.DepartmentID, &s.ProductID, &s.MinimumStock, &s.MaximumStock,
		&s.ReorderPoint, &s.DefaultWithdrawalQty, &s.Location, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID obtiene la configuración de stock por ID.
func (r *StockRepo) GetByID(ctx context.Context, id string) (*entity.DepartmentStock, error) {
	if !validIDs(id) {
		return nil, nil
	}
	s, err := scanStock(r.q.QueryRow(ctx, `SELECT `+stockColumns+` FROM department_stocks WHERE id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

// GetByDepartmentAndProduct obtiene la fila del par (departamento, producto).
func (r *StockRepo) GetByDepartmentAndProduct(ctx context.Context, departmentID, productID string) (*entity.DepartmentStock, error) {
	if !validIDs(departmentID, productID) {
		return nil, nil
	}
	query := `SELECT ` + stockColumns + ` FROM department_stocks WHERE department_id = $1 AND product_id = $2`
	s, err := scanStock(r.q.QueryRow(ctx, query, departmentID, productID))
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock by department: %w", err)
	}
	return s, nil
}

// Ensure inserta la fila si no existe (ON CONFLICT DO NOTHING) y devuelve la vigente.
// Dos llamadas concurrentes para el mismo par terminan leyendo la misma fila.
func (r *StockRepo) Ensure(ctx context.Context, stock *entity.DepartmentStock) (*entity.DepartmentStock, error) {
	query := `
		INSERT INTO department_stocks (` + stockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (department_id, product_id) DO NOTHING`
	_, err := r.q.Exec(ctx, query,
		stock.ID, stock.OrganizationID, stock.DepartmentID, stock.ProductID, stock.MinimumStock, stock.MaximumStock,
		stock.ReorderPoint, stock.DefaultWithdrawalQty, stock.Location, stock.CreatedAt, stock.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure stock: %w", err)
	}
	s, err := r.GetByDepartmentAndProduct(ctx, stock.DepartmentID, stock.ProductID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("ensure stock: fila ausente tras insertar")
	}
	return s, nil
}

// ListByDepartment configuraciones de stock del departamento, paginadas.
func (r *StockRepo) ListByDepartment(ctx context.Context, departmentID string, limit, offset int) ([]*entity.DepartmentStock, error) {
	query := `SELECT ` + stockColumns + ` FROM department_stocks
		WHERE department_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, departmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()
	var out []*entity.DepartmentStock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
