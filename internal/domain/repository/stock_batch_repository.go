package repository

import (
	"context"
	"time"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// StockBatchRepository define el puerto del libro de lotes.
//
// Las mutaciones de cantidad son incrementos/decrementos atómicos sobre una sola fila, con guarda
// condicional en el almacenamiento (nunca leer-modificar-escribir en la aplicación). Devuelven
// false cuando la guarda no se cumple (cantidad insuficiente, lote inactivo o estado no apto).
type StockBatchRepository interface {
	// Create persiste un lote nuevo. domain.ErrDuplicateLot si el lote ya existe en el stock.
	Create(ctx context.Context, batch *entity.StockBatch) error
	GetByID(ctx context.Context, id string) (*entity.StockBatch, error)
	GetByStockAndLot(ctx context.Context, stockID, lotNumber string) (*entity.StockBatch, error)
	ListByStock(ctx context.Context, stockID string) ([]*entity.StockBatch, error)

	// ListAllocatable lotes activos, AVAILABLE, con disponible > 0 y no vencidos, en orden FIFO.
	ListAllocatable(ctx context.Context, stockID string, now time.Time) ([]*entity.StockBatch, error)
	// ListReserved lotes activos con reservado > 0, en orden FIFO, con HeldQuantity completado.
	ListReserved(ctx context.Context, stockID string) ([]*entity.StockBatch, error)
	// Summarize agrega cantidades de lotes activos y no vencidos. Solo lectura.
	Summarize(ctx context.Context, stockID string, now time.Time) (entity.StockSummary, error)

	// Reserve disponible -= qty, reservado += qty (lote AVAILABLE con disponible >= qty).
	Reserve(ctx context.Context, batchID string, qty int64) (bool, error)
	// Release reservado -= qty, disponible += qty.
	Release(ctx context.Context, batchID string, qty int64) (bool, error)
	// Consume reservado -= qty, total -= qty (la reserva sale del libro al entregar).
	Consume(ctx context.Context, batchID string, qty int64) (bool, error)
	// Restore deshace un Consume: reservado += qty, total += qty.
	Restore(ctx context.Context, batchID string, qty int64) (bool, error)
	// Credit entrada sobre un lote existente AVAILABLE o RESERVED: total += qty, disponible += qty.
	Credit(ctx context.Context, batchID string, qty int64) (bool, error)
	// Adjust delta firmado sobre disponible y total; nunca deja disponible negativo.
	Adjust(ctx context.Context, batchID string, delta int64) (bool, error)
}
