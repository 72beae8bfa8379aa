package transfer

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción que incluye el libro de lotes y el
// agregado de traslados. Una operación de flujo completa (reservas, ítems, cabecera e historial)
// se confirma o se revierte como unidad.
type TxRunner interface {
	RunTransfer(ctx context.Context, fn func(
		batchRepo repository.StockBatchRepository,
		stockRepo repository.StockRepository,
		transferRepo repository.TransferRepository,
	) error) error
}

// DispatchNoteGenerator genera la nota de despacho (PDF) de un traslado.
type DispatchNoteGenerator interface {
	GenerateDispatchNote(ctx context.Context, note *dto.DispatchNoteDTO) ([]byte, error)
}
