package repository

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// TransferFilter filtros de listado. Solo uno de RequestingDepartment/SupplyingDepartment suele venir.
type TransferFilter struct {
	OrganizationID       string
	RequestingDepartment string
	SupplyingDepartment  string
	Status               entity.TransferStatus // vacío = todos
	Priority             entity.Priority       // vacío = todas
	Limit                int
	Offset               int
}

// TransferRepository define el puerto de persistencia del agregado Transfer (cabecera, ítems,
// lotes escogidos e historial). GetByID/GetForUpdate devuelven el agregado completo o (nil, nil).
type TransferRepository interface {
	// Create inserta cabecera e ítems. domain.ErrDuplicateCode si el código ya existe en la organización.
	Create(ctx context.Context, transfer *entity.Transfer) error
	ExistsCode(ctx context.Context, organizationID, code string) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.Transfer, error)
	// GetForUpdate igual que GetByID pero bloquea la cabecera hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error)

	// UpdateItem actualización condicional: solo aplica si el estado almacenado sigue siendo from.
	UpdateItem(ctx context.Context, item *entity.TransferItem, from entity.ItemStatus) (bool, error)
	UpdateHeader(ctx context.Context, transfer *entity.Transfer) error

	AddBatch(ctx context.Context, batch *entity.TransferBatch) error
	SetBatchReceived(ctx context.Context, transferBatchID string, received int64) error

	// AppendHistory agrega una fila al historial (append-only).
	AppendHistory(ctx context.Context, h *entity.TransferHistory) error
	ListHistory(ctx context.Context, transferID string) ([]*entity.TransferHistory, error)

	// List devuelve traslados con sus ítems (sin lotes) y el total que cumple el filtro,
	// del más reciente al más antiguo.
	List(ctx context.Context, f TransferFilter) ([]*entity.Transfer, int, error)
}
