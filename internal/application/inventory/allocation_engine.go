package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// AllocationEngine aplica reservas, liberaciones y entregas sobre el libro de lotes.
// No abre transacciones: trabaja con los repositorios que recibe, así el llamador decide
// la frontera atómica (una operación de flujo = una transacción).
type AllocationEngine struct {
	now func() time.Time
}

// NewAllocationEngine construye el motor con el reloj del sistema.
func NewAllocationEngine() *AllocationEngine {
	return &AllocationEngine{now: time.Now}
}

// WithClock reemplaza el reloj usado para evaluar vencimientos.
func (e *AllocationEngine) WithClock(now func() time.Time) *AllocationEngine {
	e.now = now
	return e
}

// ReserveFIFO reserva quantity sobre los lotes elegibles del stock, del más antiguo al más reciente.
// Si no alcanza, deja aplicadas las reservas parciales y devuelve *domain.InsufficientStockError con
// el faltante; el llamador revierte la transacción si quiere todo o nada.
func (e *AllocationEngine) ReserveFIFO(
	ctx context.Context,
	batchRepo repository.StockBatchRepository,
	stockID string,
	quantity int64,
) ([]inventory.Allocation, error) {
	if quantity <= 0 {
		return nil, domain.Invalid("quantity", "debe ser mayor que cero")
	}
	now := e.now()
	candidates, err := batchRepo.ListAllocatable(ctx, stockID, now)
	if err != nil {
		return nil, fmt.Errorf("reserva fifo: listar lotes: %w", err)
	}
	plan, shortfall := inventory.PlanFIFO(candidates, quantity, now)

	applied := make([]inventory.Allocation, 0, len(plan))
	for _, a := range plan {
		ok, err := batchRepo.Reserve(ctx, a.BatchID, a.Quantity)
		if err != nil {
			return applied, fmt.Errorf("reserva fifo: lote %s: %w", a.BatchID, err)
		}
		if !ok {
			// otro proceso tomó el disponible entre la lectura y el update
			shortfall += a.Quantity
			continue
		}
		applied = append(applied, a)
	}
	if shortfall > 0 {
		return applied, &domain.InsufficientStockError{StockID: stockID, Requested: quantity, Shortfall: shortfall}
	}
	return applied, nil
}

// Release devuelve quantity de lo reservado a disponible, desde el lote más antiguo.
// Es todo o nada: si lo reservado no alcanza no toca ningún lote.
func (e *AllocationEngine) Release(
	ctx context.Context,
	batchRepo repository.StockBatchRepository,
	stockID string,
	quantity int64,
) ([]inventory.Allocation, error) {
	if quantity <= 0 {
		return nil, domain.Invalid("quantity", "debe ser mayor que cero")
	}
	reserved, err := batchRepo.ListReserved(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("liberar: listar lotes: %w", err)
	}
	plan, shortfall := inventory.PlanRelease(reserved, quantity)
	if shortfall > 0 {
		return nil, fmt.Errorf("%w: reservado insuficiente en %s, faltan %d", domain.ErrConflict, stockID, shortfall)
	}
	for _, a := range plan {
		ok, err := batchRepo.Release(ctx, a.BatchID, a.Quantity)
		if err != nil {
			return nil, fmt.Errorf("liberar: lote %s: %w", a.BatchID, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: la reserva del lote %s cambió", domain.ErrConflict, a.BatchID)
		}
	}
	return plan, nil
}

// PickManual valida y reserva la selección de lotes hecha por el operador. La suma debe ser
// exactamente expected; cada lote debe pertenecer al stock, estar disponible y cubrir su cantidad.
// Devuelve los lotes escogidos en el orden de picks.
func (e *AllocationEngine) PickManual(
	ctx context.Context,
	batchRepo repository.StockBatchRepository,
	stockID string,
	picks []inventory.Pick,
	expected int64,
) ([]*entity.StockBatch, error) {
	byID := make(map[string]*entity.StockBatch, len(picks))
	for _, p := range picks {
		if p.BatchID == "" {
			continue
		}
		if _, seen := byID[p.BatchID]; seen {
			continue
		}
		b, err := batchRepo.GetByID(ctx, p.BatchID)
		if err != nil {
			return nil, fmt.Errorf("selección de lotes: obtener lote: %w", err)
		}
		// un lote de otro stock se trata como inexistente
		if b == nil || b.StockID != stockID {
			continue
		}
		byID[b.ID] = b
	}
	if err := inventory.ValidatePicks(picks, expected, byID, e.now()); err != nil {
		return nil, err
	}

	out := make([]*entity.StockBatch, 0, len(picks))
	for _, p := range picks {
		b := byID[p.BatchID]
		ok, err := batchRepo.Reserve(ctx, p.BatchID, p.Quantity)
		if err != nil {
			return nil, fmt.Errorf("selección de lotes: reservar %s: %w", p.BatchID, err)
		}
		if !ok {
			return nil, &domain.BatchOverAllocationError{
				BatchID: p.BatchID, Requested: p.Quantity, Available: b.AvailableQuantity,
				Reason: "el lote cambió durante la preparación",
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// ReleasePicks devuelve a disponible exactamente lo reservado por los lotes escogidos de un ítem.
func (e *AllocationEngine) ReleasePicks(
	ctx context.Context,
	batchRepo repository.StockBatchRepository,
	picks []*entity.TransferBatch,
) error {
	for _, p := range picks {
		ok, err := batchRepo.Release(ctx, p.StockBatchID, p.Quantity)
		if err != nil {
			return fmt.Errorf("liberar selección: lote %s: %w", p.StockBatchID, err)
		}
		if !ok {
			return fmt.Errorf("%w: la reserva del lote %s ya no existe", domain.ErrConflict, p.LotNumber)
		}
	}
	return nil
}

// Delivery cantidad recibida de un lote despachado.
type Delivery struct {
	Pick     *entity.TransferBatch
	Received int64
}

// DeliveryTarget stock receptor en el departamento solicitante.
type DeliveryTarget struct {
	OrganizationID string
	DepartmentID   string
	ProductID      string
}

// DeliveryResult stock receptor y lotes acreditados.
type DeliveryResult struct {
	TargetStockID string
	Received      int64
	Credited      []inventory.Allocation
}

// ConfirmDelivery cierra el movimiento entre los dos libros: consume la reserva completa del lote
// proveedor (lo no recibido se considera perdido en tránsito) y acredita lo recibido en el stock del
// departamento solicitante, creando el stock y el lote (mismo número, vencimiento y proveedor) si no
// existen. Si el abono falla se restituye el consumo antes de devolver el error.
func (e *AllocationEngine) ConfirmDelivery(
	ctx context.Context,
	batchRepo repository.StockBatchRepository,
	stockRepo repository.StockRepository,
	target DeliveryTarget,
	deliveries []Delivery,
) (*DeliveryResult, error) {
	for _, d := range deliveries {
		if d.Received < 0 {
			return nil, domain.Invalid("received_quantity", "no puede ser negativa")
		}
		if d.Received > d.Pick.Quantity {
			return nil, domain.Invalid("received_quantity",
				fmt.Sprintf("lote %s: recibido %d mayor a lo despachado %d", d.Pick.LotNumber, d.Received, d.Pick.Quantity))
		}
	}

	now := e.now()
	dest, err := stockRepo.Ensure(ctx, &entity.DepartmentStock{
		ID:             uuid.New().String(),
		OrganizationID: target.OrganizationID,
		DepartmentID:   target.DepartmentID,
		ProductID:      target.ProductID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("entrega: stock receptor: %w", err)
	}

	res := &DeliveryResult{TargetStockID: dest.ID}
	for _, d := range deliveries {
		src, err := batchRepo.GetByID(ctx, d.Pick.StockBatchID)
		if err != nil {
			return nil, fmt.Errorf("entrega: lote origen: %w", err)
		}
		if src == nil {
			return nil, fmt.Errorf("%w: lote origen %s", domain.ErrNotFound, d.Pick.StockBatchID)
		}
		ok, err := batchRepo.Consume(ctx, src.ID, d.Pick.Quantity)
		if err != nil {
			return nil, fmt.Errorf("entrega: consumir lote %s: %w", src.LotNumber, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: la reserva del lote %s ya no está disponible", domain.ErrConflict, src.LotNumber)
		}
		if d.Received == 0 {
			continue
		}

		creditedID, err := e.credit(ctx, batchRepo, dest.ID, src, d.Received, now)
		if err != nil {
			if _, rerr := batchRepo.Restore(ctx, src.ID, d.Pick.Quantity); rerr != nil {
				return nil, fmt.Errorf("entrega: restituir lote %s: %v: %w", src.LotNumber, rerr, err)
			}
			return nil, err
		}
		res.Received += d.Received
		res.Credited = append(res.Credited, inventory.Allocation{BatchID: creditedID, Quantity: d.Received})
	}
	return res, nil
}

// mergeable el lote del mismo número solo recibe el crédito si sigue utilizable y vence igual.
func mergeable(existing, src *entity.StockBatch) error {
	if existing.Status != entity.BatchAvailable && existing.Status != entity.BatchReserved {
		return &domain.LotMismatchError{LotNumber: existing.LotNumber, Status: string(existing.Status), Reason: "el lote no admite ingresos"}
	}
	if !sameDate(existing.ExpiryDate, src.ExpiryDate) {
		return &domain.LotMismatchError{LotNumber: existing.LotNumber, Status: string(existing.Status), Reason: "vencimiento distinto al del origen"}
	}
	return nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// credit suma qty al lote del mismo número en el stock receptor o crea uno nuevo con la metadata del origen.
func (e *AllocationEngine) credit(
	ctx context.Context,
	batchRepo repository.StockBatchRepository,
	destStockID string,
	src *entity.StockBatch,
	qty int64,
	now time.Time,
) (string, error) {
	existing, err := batchRepo.GetByStockAndLot(ctx, destStockID, src.LotNumber)
	if err != nil {
		return "", fmt.Errorf("entrega: buscar lote receptor: %w", err)
	}
	if existing != nil {
		if err := mergeable(existing, src); err != nil {
			return "", err
		}
		ok, err := batchRepo.Credit(ctx, existing.ID, qty)
		if err != nil {
			return "", fmt.Errorf("entrega: acreditar lote %s: %w", existing.LotNumber, err)
		}
		if !ok {
			return "", fmt.Errorf("%w: no se pudo acreditar el lote %s", domain.ErrConflict, existing.LotNumber)
		}
		return existing.ID, nil
	}

	b := &entity.StockBatch{
		ID:                uuid.New().String(),
		StockID:           destStockID,
		LotNumber:         src.LotNumber,
		ExpiryDate:        src.ExpiryDate,
		ManufactureDate:   src.ManufactureDate,
		Supplier:          src.Supplier,
		CostPrice:         src.CostPrice,
		SellingPrice:      src.SellingPrice,
		TotalQuantity:     qty,
		AvailableQuantity: qty,
		Status:            entity.BatchAvailable,
		IsActive:          true,
		ReceivedAt:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := batchRepo.Create(ctx, b); err != nil {
		return "", fmt.Errorf("entrega: crear lote receptor: %w", err)
	}
	return b.ID, nil
}
