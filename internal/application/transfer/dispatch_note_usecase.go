package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// DispatchNoteUseCase genera la nota de despacho (PDF) que acompaña la mercancía.
// Solo se permite cuando al menos un ítem ya tiene lotes escogidos (PREPARED o DELIVERED).
type DispatchNoteUseCase struct {
	query     *QueryUseCase
	generator DispatchNoteGenerator
	now       func() time.Time
}

// NewDispatchNoteUseCase construye el caso de uso.
func NewDispatchNoteUseCase(query *QueryUseCase, generator DispatchNoteGenerator) *DispatchNoteUseCase {
	return &DispatchNoteUseCase{query: query, generator: generator, now: time.Now}
}

// DownloadDispatchNote devuelve los bytes del PDF y el nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound     si el traslado no existe o es de otra organización.
//   - domain.ErrInvalidInput si ningún ítem ha sido preparado todavía.
func (uc *DispatchNoteUseCase) DownloadDispatchNote(ctx context.Context, actor entity.Actor, transferID string) ([]byte, string, error) {
	t, err := uc.query.load(ctx, actor, transferID)
	if err != nil {
		return nil, "", err
	}
	dispatched := false
	for _, it := range t.Items {
		if it.Status == entity.ItemPrepared || it.Status == entity.ItemDelivered {
			dispatched = true
			break
		}
	}
	if !dispatched {
		return nil, "", fmt.Errorf("%w: el traslado %s no tiene ítems preparados", domain.ErrInvalidInput, t.Code)
	}

	detail, err := uc.query.Present(ctx, t)
	if err != nil {
		return nil, "", err
	}
	pdf, err := uc.generator.GenerateDispatchNote(ctx, &dto.DispatchNoteDTO{
		Transfer:    *detail,
		GeneratedAt: uc.now(),
		GeneratedBy: actor.Snapshot(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("nota de despacho: generar pdf: %w", err)
	}
	return pdf, fmt.Sprintf("despacho-%s.pdf", t.Code), nil
}
