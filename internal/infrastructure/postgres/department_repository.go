package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var _ repository.DepartmentRepository = (*DepartmentRepo)(nil)

// DepartmentRepo implementación del puerto DepartmentRepository sobre PostgreSQL.
type DepartmentRepo struct {
	q Querier
}

// NewDepartmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDepartmentRepository(q Querier) *DepartmentRepo {
	return &DepartmentRepo{q: q}
}

// GetByID obtiene un departamento por ID.
func (r *DepartmentRepo) GetByID(ctx context.Context, id string) (*entity.Department, error) {
	if !validIDs(id) {
		return nil, nil
	}
	query := `
		SELECT id, organization_id, code, name, is_active, created_at, updated_at
		FROM departments WHERE id = $1`
	var d entity.Department
	err := r.q.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.OrganizationID, &d.Code, &d.Name, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &d, nil
}
