package ports

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// StockSummaryCache caché de lectura para los agregados de stock.
// Es derivado: toda mutación de lotes invalida las entradas afectadas y la fuente de verdad
// sigue siendo el libro de lotes.
type StockSummaryCache interface {
	// Get devuelve (nil, nil) si no hay entrada.
	Get(ctx context.Context, stockID string) (*entity.StockSummary, error)
	Set(ctx context.Context, summary entity.StockSummary) error
	Invalidate(ctx context.Context, stockIDs ...string) error
}
