package inventory

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para las operaciones del libro de lotes.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		batchRepo repository.StockBatchRepository,
		stockRepo repository.StockRepository,
	) error) error
}
