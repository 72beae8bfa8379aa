package inventory

import (
	"sort"
	"time"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// Allocation cantidad a mover sobre un lote concreto.
type Allocation struct {
	BatchID  string
	Quantity int64
}

// Pick selección manual de un lote hecha por el operador al preparar un ítem.
type Pick struct {
	BatchID  string
	Quantity int64
}

// SortFIFO ordena por fecha de recepción ascendente (lo más antiguo primero); desempata por ID.
func SortFIFO(batches []*entity.StockBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].ReceivedAt.Equal(batches[j].ReceivedAt) {
			return batches[i].ReceivedAt.Before(batches[j].ReceivedAt)
		}
		return batches[i].ID < batches[j].ID
	})
}

// PlanFIFO reparte quantity sobre los lotes elegibles, del más antiguo al más reciente,
// tomando min(restante, disponible) de cada uno. shortfall > 0 si los candidatos no alcanzan.
func PlanFIFO(candidates []*entity.StockBatch, quantity int64, now time.Time) (plan []Allocation, shortfall int64) {
	eligible := make([]*entity.StockBatch, 0, len(candidates))
	for _, b := range candidates {
		if b.IsAllocatable(now) {
			eligible = append(eligible, b)
		}
	}
	SortFIFO(eligible)

	remaining := quantity
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.AvailableQuantity)
		plan = append(plan, Allocation{BatchID: b.ID, Quantity: take})
		remaining -= take
	}
	return plan, remaining
}

// PlanRelease espejo de PlanFIFO sobre lo reservado: devuelve a disponible desde el lote más antiguo.
// Solo toca reservas libres; lo retenido por traslados preparados se libera por sus propias selecciones.
func PlanRelease(batches []*entity.StockBatch, quantity int64) (plan []Allocation, shortfall int64) {
	reserved := make([]*entity.StockBatch, 0, len(batches))
	for _, b := range batches {
		if b.IsActive && b.FreeReserved() > 0 {
			reserved = append(reserved, b)
		}
	}
	SortFIFO(reserved)

	remaining := quantity
	for _, b := range reserved {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.FreeReserved())
		plan = append(plan, Allocation{BatchID: b.ID, Quantity: take})
		remaining -= take
	}
	return plan, remaining
}

// ValidatePicks verifica una selección manual contra la cantidad aprobada y el estado actual de
// los lotes: la suma debe ser exactamente expected y ninguna selección puede exceder lo disponible.
// batches debe contener todos los lotes referenciados.
func ValidatePicks(picks []Pick, expected int64, batches map[string]*entity.StockBatch, now time.Time) error {
	if len(picks) == 0 {
		return domain.Invalid("batches", "debe seleccionar al menos un lote")
	}
	seen := make(map[string]struct{}, len(picks))
	var sum int64
	for _, p := range picks {
		if p.BatchID == "" {
			return domain.Invalid("batch_id", "requerido")
		}
		if p.Quantity <= 0 {
			return domain.Invalid("quantity", "debe ser mayor que cero")
		}
		if _, dup := seen[p.BatchID]; dup {
			return domain.Invalid("batches", "lote repetido "+p.BatchID)
		}
		seen[p.BatchID] = struct{}{}
		sum += p.Quantity
	}
	if sum != expected {
		return &domain.BatchOverAllocationError{
			Requested: sum,
			Available: expected,
			Reason:    "la suma de lotes no coincide con la cantidad aprobada",
		}
	}
	for _, p := range picks {
		b := batches[p.BatchID]
		if b == nil {
			return domain.ErrNotFound
		}
		if !b.IsAllocatable(now) {
			return &domain.BatchOverAllocationError{
				BatchID: b.ID, Requested: p.Quantity, Available: 0,
				Reason: "lote no disponible para despacho",
			}
		}
		if p.Quantity > b.AvailableQuantity {
			return &domain.BatchOverAllocationError{
				BatchID: b.ID, Requested: p.Quantity, Available: b.AvailableQuantity,
				Reason: "cantidad mayor a la disponible",
			}
		}
	}
	return nil
}

// Summarize agrega las cantidades de los lotes activos y no vencidos.
func Summarize(stockID string, batches []*entity.StockBatch, now time.Time) entity.StockSummary {
	s := entity.StockSummary{StockID: stockID}
	for _, b := range batches {
		if !b.CountsInSummary(now) {
			continue
		}
		s.TotalQuantity += b.TotalQuantity
		s.AvailableQuantity += b.AvailableQuantity
		s.ReservedQuantity += b.ReservedQuantity
		s.IncomingQuantity += b.IncomingQuantity
		s.BatchCount++
	}
	return s
}
