package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	appinventory "github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/ports"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/internal/domain/transfer"
)

// WorkflowUseCase operaciones del flujo de traslados entre departamentos.
//
// Cada operación valida permisos y entrada antes de tocar estado, luego abre una única
// transacción donde bloquea la cabecera del traslado, aplica la transición del ítem (y las
// reservas o entregas sobre el libro de lotes), recalcula el estado agregado y agrega el
// historial. Tras el commit invalida la caché de stock y registra la auditoría.
type WorkflowUseCase struct {
	txRunner       TxRunner
	engine         *appinventory.AllocationEngine
	transferRepo   repository.TransferRepository
	departmentRepo repository.DepartmentRepository
	productRepo    repository.ProductRepository
	cache          ports.StockSummaryCache
	audit          ports.AuditLogger
	now            func() time.Time
}

// NewWorkflowUseCase construye el caso de uso. cache y audit son opcionales (nil).
func NewWorkflowUseCase(
	txRunner TxRunner,
	engine *appinventory.AllocationEngine,
	transferRepo repository.TransferRepository,
	departmentRepo repository.DepartmentRepository,
	productRepo repository.ProductRepository,
	cache ports.StockSummaryCache,
	audit ports.AuditLogger,
) *WorkflowUseCase {
	return &WorkflowUseCase{
		txRunner:       txRunner,
		engine:         engine,
		transferRepo:   transferRepo,
		departmentRepo: departmentRepo,
		productRepo:    productRepo,
		cache:          cache,
		audit:          audit,
		now:            time.Now,
	}
}

// WithClock reemplaza el reloj usado para las marcas de tiempo.
func (uc *WorkflowUseCase) WithClock(now func() time.Time) *WorkflowUseCase {
	uc.now = now
	return uc
}

// CreateTransfer crea el traslado y sus ítems en PENDING. No reserva stock: la reserva ocurre al
// preparar, porque la aprobación puede reducir cantidades.
func (uc *WorkflowUseCase) CreateTransfer(ctx context.Context, actor entity.Actor, in dto.CreateTransferRequest) (*entity.Transfer, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, domain.Invalid("code", "requerido")
	}
	if in.RequestingDepartmentID == "" {
		return nil, domain.Invalid("requesting_department_id", "requerido")
	}
	if in.SupplyingDepartmentID == "" {
		return nil, domain.Invalid("supplying_department_id", "requerido")
	}
	if in.RequestingDepartmentID == in.SupplyingDepartmentID {
		return nil, domain.Invalid("supplying_department_id", "debe ser distinto al departamento solicitante")
	}
	priority, err := entity.ParsePriority(strings.ToUpper(strings.TrimSpace(in.Priority)))
	if err != nil {
		return nil, domain.Invalid("priority", err.Error())
	}
	if len(in.Items) == 0 {
		return nil, domain.Invalid("items", "debe incluir al menos un producto")
	}
	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return nil, domain.Invalid("product_id", "requerido")
		}
		if it.Quantity <= 0 {
			return nil, domain.Invalid("quantity", "debe ser mayor que cero")
		}
		if _, dup := seen[it.ProductID]; dup {
			return nil, domain.Invalid("items", "producto repetido "+it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}

	// ── Referencias del catálogo ──────────────────────────────────────────────
	for _, id := range []string{in.RequestingDepartmentID, in.SupplyingDepartmentID} {
		if err := uc.requireDepartment(ctx, actor, id); err != nil {
			return nil, err
		}
	}
	for _, it := range in.Items {
		if err := uc.requireProduct(ctx, actor, it.ProductID); err != nil {
			return nil, err
		}
	}
	exists, err := uc.transferRepo.ExistsCode(ctx, actor.OrganizationID, code)
	if err != nil {
		return nil, fmt.Errorf("traslado: verificar código: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateCode
	}

	now := uc.now()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = code
	}
	t := &entity.Transfer{
		ID:                   uuid.New().String(),
		OrganizationID:       actor.OrganizationID,
		Code:                 code,
		Title:                title,
		RequestingDepartment: in.RequestingDepartmentID,
		SupplyingDepartment:  in.SupplyingDepartmentID,
		Status:               entity.TransferPending,
		Priority:             priority,
		Reason:               strings.TrimSpace(in.Reason),
		Notes:                strings.TrimSpace(in.Notes),
		RequestedBy:          actor.Snapshot(),
		RequestedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for _, it := range in.Items {
		t.Items = append(t.Items, &entity.TransferItem{
			ID:                uuid.New().String(),
			TransferID:        t.ID,
			ProductID:         it.ProductID,
			RequestedQuantity: it.Quantity,
			Status:            entity.ItemPending,
			Notes:             strings.TrimSpace(it.Notes),
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	_, err = uc.inTx(ctx, func(s *txScope) error {
		if err := s.transfers.Create(ctx, t); err != nil {
			return err
		}
		if err := s.transfers.AppendHistory(ctx, newHistory(t.ID, "", entity.HistoryCreated, "", string(t.Status), actor, t.Notes, now)); err != nil {
			return err
		}
		for _, it := range t.Items {
			if err := s.transfers.AppendHistory(ctx, newHistory(t.ID, it.ID, entity.HistoryCreated, "", string(it.Status), actor, it.Notes, now)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(t.Items))
	for _, it := range t.Items {
		items = append(items, map[string]any{"product_id": it.ProductID, "requested_quantity": it.RequestedQuantity})
	}
	uc.finish(ctx, actor, "TRANSFER_CREATED", t, "", nil, map[string]any{
		"code":     t.Code,
		"priority": t.Priority,
		"items":    items,
	})
	return t, nil
}

// ApproveItem PENDING → APPROVED. Sin cantidad se aprueba lo solicitado; una cantidad explícita
// debe estar entre 1 y la solicitada.
func (uc *WorkflowUseCase) ApproveItem(ctx context.Context, actor entity.Actor, transferID, itemID string, in dto.ApproveItemRequest) (*entity.Transfer, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	if in.ApprovedQuantity != nil && *in.ApprovedQuantity <= 0 {
		return nil, domain.Invalid("approved_quantity", "debe ser mayor que cero")
	}

	now := uc.now()
	var (
		t       *entity.Transfer
		payload map[string]any
	)
	touched, err := uc.inTx(ctx, func(s *txScope) error {
		var err error
		t, err = uc.lockTransfer(ctx, s, actor, transferID)
		if err != nil {
			return err
		}
		item := t.Item(itemID)
		if item == nil {
			return domain.ErrNotFound
		}
		step := itemStep{action: transfer.ActionApprove, notes: in.Notes, apply: func(_ context.Context, _ *txScope, _ *entity.Transfer, item *entity.TransferItem) error {
			qty := item.RequestedQuantity
			if in.ApprovedQuantity != nil {
				qty = *in.ApprovedQuantity
			}
			if qty < 1 || qty > item.RequestedQuantity {
				return domain.Invalid("approved_quantity", fmt.Sprintf("debe estar entre 1 y %d", item.RequestedQuantity))
			}
			item.ApprovedQuantity = &qty
			item.ApprovedAt = &now
			payload = map[string]any{"item_id": item.ID, "requested_quantity": item.RequestedQuantity, "approved_quantity": qty}
			return nil
		}}
		if err := uc.applyStep(ctx, s, actor, t, item, step, now); err != nil {
			return err
		}
		return uc.rollup(ctx, s, actor, t, now)
	})
	if err != nil {
		return nil, err
	}
	uc.finish(ctx, actor, "TRANSFER_ITEM_APPROVED", t, itemID, touched, payload)
	return t, nil
}

// ApproveAll aprueba con la cantidad solicitada todos los ítems PENDING, en una sola transacción.
func (uc *WorkflowUseCase) ApproveAll(ctx context.Context, actor entity.Actor, transferID string, in dto.NotesRequest) (*entity.Transfer, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}

	now := uc.now()
	var (
		t        *entity.Transfer
		approved []string
	)
	touched, err := uc.inTx(ctx, func(s *txScope) error {
		var err error
		t, err = uc.lockTransfer(ctx, s, actor, transferID)
		if err != nil {
			return err
		}
		for _, item := range t.Items {
			if item.Status != entity.ItemPending {
				continue
			}
			step := itemStep{action: transfer.ActionApprove, notes: in.Notes, apply: func(_ context.Context, _ *txScope, _ *entity.Transfer, item *entity.TransferItem) error {
				qty := item.RequestedQuantity
				item.ApprovedQuantity = &qty
				item.ApprovedAt = &now
				return nil
			}}
			if err := uc.applyStep(ctx, s, actor, t, item, step, now); err != nil {
				return err
			}
			approved = append(approved, item.ID)
		}
		if len(approved) == 0 {
			return &domain.InvalidTransitionError{Action: "approve_all", From: string(t.Status)}
		}
		return uc.rollup(ctx, s, actor, t, now)
	})
	if err != nil {
		return nil, err
	}
	uc.finish(ctx, actor, "TRANSFER_APPROVED", t, "", touched, map[string]any{"items": approved})
	return t, nil
}

// PrepareItem APPROVED → PREPARED. El operador del departamento proveedor escoge los lotes; la
// suma debe ser exactamente la cantidad aprobada. Reserva lo escogido y registra los lotes del ítem.
func (uc *WorkflowUseCase) PrepareItem(ctx context.Context, actor entity.Actor, transferID, itemID string, in dto.PrepareItemRequest) (*entity.Transfer, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	if len(in.Batches) == 0 {
		return nil, domain.Invalid("batches", "debe seleccionar al menos un lote")
	}
	picks := make([]inventory.Pick, 0, len(in.Batches))
	for _, b := range in.Batches {
		picks = append(picks, inventory.Pick{BatchID: b.BatchID, Quantity: b.Quantity})
	}

	now := uc.now()
	var (
		t       *entity.Transfer
		payload map[string]any
	)
	touched, err := uc.inTx(ctx, func(s *txScope) error {
		var err error
		t, err = uc.lockTransfer(ctx, s, actor, transferID)
		if err != nil {
			return err
		}
		item := t.Item(itemID)
		if item == nil {
			return domain.ErrNotFound
		}
		step := itemStep{action: transfer.ActionPrepare, notes: in.Notes, apply: func(ctx context.Context, s *txScope, t *entity.Transfer, item *entity.TransferItem) error {
			stock, err := s.stocks.GetByDepartmentAndProduct(ctx, t.SupplyingDepartment, item.ProductID)
			if err != nil {
				return fmt.Errorf("preparar: stock proveedor: %w", err)
			}
			if stock == nil {
				return fmt.Errorf("%w: el departamento proveedor no maneja el producto", domain.ErrNotFound)
			}
			expected := item.RequestedQuantity
			if item.ApprovedQuantity != nil {
				expected = *item.ApprovedQuantity
			}
			picked, err := uc.engine.PickManual(ctx, s.batches, stock.ID, picks, expected)
			if err != nil {
				return err
			}
			lots := make([]map[string]any, 0, len(picked))
			for i, b := range picked {
				tb := &entity.TransferBatch{
					ID:             uuid.New().String(),
					TransferItemID: item.ID,
					StockBatchID:   b.ID,
					LotNumber:      b.LotNumber,
					Quantity:       picks[i].Quantity,
					CreatedAt:      now,
					UpdatedAt:      now,
				}
				if err := s.transfers.AddBatch(ctx, tb); err != nil {
					return err
				}
				item.Batches = append(item.Batches, tb)
				lots = append(lots, map[string]any{"lot_number": b.LotNumber, "quantity": tb.Quantity})
			}
			item.PreparedQuantity = &expected
			item.PreparedAt = &now
			s.touch(stock.ID)
			payload = map[string]any{"item_id": item.ID, "prepared_quantity": expected, "batches": lots}
			return nil
		}}
		if err := uc.applyStep(ctx, s, actor, t, item, step, now); err != nil {
			return err
		}
		return uc.rollup(ctx, s, actor, t, now)
	})
	if err != nil {
		return nil, err
	}
	uc.finish(ctx, actor, "TRANSFER_ITEM_PREPARED", t, itemID, touched, payload)
	return t, nil
}

// DeliverItem PREPARED → DELIVERED. Consume las reservas del proveedor y acredita lo recibido al
// solicitante. Los lotes sin recibo explícito se reciben completos; recibir menos registra el
// faltante en el lote del traslado.
func (uc *WorkflowUseCase) DeliverItem(ctx context.Context, actor entity.Actor, transferID, itemID string, in dto.DeliverItemRequest) (*entity.Transfer, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	receipts := make(map[string]int64, len(in.Receipts))
	for _, r := range in.Receipts {
		if r.TransferBatchID == "" {
			return nil, domain.Invalid("transfer_batch_id", "requerido")
		}
		if r.ReceivedQuantity < 0 {
			return nil, domain.Invalid("received_quantity", "no puede ser negativa")
		}
		if _, dup := receipts[r.TransferBatchID]; dup {
			return nil, domain.Invalid("receipts", "lote repetido "+r.TransferBatchID)
		}
		receipts[r.TransferBatchID] = r.ReceivedQuantity
	}

	now := uc.now()
	var (
		t       *entity.Transfer
		payload map[string]any
	)
	touched, err := uc.inTx(ctx, func(s *txScope) error {
		var err error
		t, err = uc.lockTransfer(ctx, s, actor, transferID)
		if err != nil {
			return err
		}
		item := t.Item(itemID)
		if item == nil {
			return domain.ErrNotFound
		}
		step := itemStep{action: transfer.ActionDeliver, notes: in.Notes, apply: func(ctx context.Context, s *txScope, t *entity.Transfer, item *entity.TransferItem) error {
			known := make(map[string]struct{}, len(item.Batches))
			deliveries := make([]appinventory.Delivery, 0, len(item.Batches))
			for _, tb := range item.Batches {
				known[tb.ID] = struct{}{}
				received := tb.Quantity
				if r, ok := receipts[tb.ID]; ok {
					received = r
				}
				deliveries = append(deliveries, appinventory.Delivery{Pick: tb, Received: received})
			}
			for id := range receipts {
				if _, ok := known[id]; !ok {
					return fmt.Errorf("%w: lote de traslado %s", domain.ErrNotFound, id)
				}
			}

			res, err := uc.engine.ConfirmDelivery(ctx, s.batches, s.stocks, appinventory.DeliveryTarget{
				OrganizationID: t.OrganizationID,
				DepartmentID:   t.RequestingDepartment,
				ProductID:      item.ProductID,
			}, deliveries)
			if err != nil {
				return err
			}
			var prepared int64
			for _, d := range deliveries {
				received := d.Received
				if err := s.transfers.SetBatchReceived(ctx, d.Pick.ID, received); err != nil {
					return err
				}
				d.Pick.ReceivedQuantity = &received
				d.Pick.UpdatedAt = now
				prepared += d.Pick.Quantity
			}
			item.ReceivedQuantity = &res.Received
			item.DeliveredAt = &now

			if err := uc.touchSupplying(ctx, s, t, item); err != nil {
				return err
			}
			s.touch(res.TargetStockID)
			payload = map[string]any{
				"item_id":           item.ID,
				"prepared_quantity": prepared,
				"received_quantity": res.Received,
				"shortfall":         prepared - res.Received,
			}
			return nil
		}}
		if err := uc.applyStep(ctx, s, actor, t, item, step, now); err != nil {
			return err
		}
		return uc.rollup(ctx, s, actor, t, now)
	})
	if err != nil {
		return nil, err
	}
	uc.finish(ctx, actor, "TRANSFER_ITEM_DELIVERED", t, itemID, touched, payload)
	return t, nil
}

// CancelItem cancela un ítem PENDING, APPROVED o PREPARED. Requiere rol elevado y motivo.
// Un ítem PREPARED devuelve primero a disponible exactamente los lotes escogidos.
func (uc *WorkflowUseCase) CancelItem(ctx context.Context, actor entity.Actor, transferID, itemID string, in dto.CancelRequest) (*entity.Transfer, error) {
	if !entity.IsElevatedRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, domain.Invalid("reason", "requerido")
	}

	now := uc.now()
	var (
		t         *entity.Transfer
		fromState entity.ItemStatus
	)
	touched, err := uc.inTx(ctx, func(s *txScope) error {
		var err error
		t, err = uc.lockTransfer(ctx, s, actor, transferID)
		if err != nil {
			return err
		}
		item := t.Item(itemID)
		if item == nil {
			return domain.ErrNotFound
		}
		fromState = item.Status
		if err := uc.applyStep(ctx, s, actor, t, item, uc.cancelStep(reason, now), now); err != nil {
			return err
		}
		return uc.rollup(ctx, s, actor, t, now)
	})
	if err != nil {
		return nil, err
	}
	uc.finish(ctx, actor, "TRANSFER_ITEM_CANCELLED", t, itemID, touched, map[string]any{
		"item_id":     itemID,
		"from_status": fromState,
		"reason":      reason,
	})
	return t, nil
}

// CancelTransfer cancela todos los ítems no terminales del traslado (liberando los preparados) y
// registra motivo y fecha en la cabecera. Requiere rol elevado; no aplica a traslados completos o
// ya cancelados.
func (uc *WorkflowUseCase) CancelTransfer(ctx context.Context, actor entity.Actor, transferID string, in dto.CancelRequest) (*entity.Transfer, error) {
	if !entity.IsElevatedRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, domain.Invalid("reason", "requerido")
	}

	now := uc.now()
	var (
		t         *entity.Transfer
		cancelled []string
	)
	touched, err := uc.inTx(ctx, func(s *txScope) error {
		var err error
		t, err = uc.lockTransfer(ctx, s, actor, transferID)
		if err != nil {
			return err
		}
		if err := transfer.CheckCancellable(t.Status); err != nil {
			return err
		}
		for _, item := range t.Items {
			if item.Status.IsTerminal() {
				continue
			}
			if err := uc.applyStep(ctx, s, actor, t, item, uc.cancelStep(reason, now), now); err != nil {
				return err
			}
			cancelled = append(cancelled, item.ID)
		}

		prev := t.Status
		t.Status = transfer.Rollup(t.ItemStatuses())
		stampTransfer(t, t.Status, now)
		t.CancelReason = reason
		t.CancelledAt = &now
		t.UpdatedAt = now
		if err := s.transfers.UpdateHeader(ctx, t); err != nil {
			return err
		}
		return s.transfers.AppendHistory(ctx, newHistory(t.ID, "", entity.HistoryTransferCancelled, string(prev), string(t.Status), actor, reason, now))
	})
	if err != nil {
		return nil, err
	}
	uc.finish(ctx, actor, "TRANSFER_CANCELLED", t, "", touched, map[string]any{
		"items":  cancelled,
		"reason": reason,
	})
	return t, nil
}

// ── Pasos internos ────────────────────────────────────────────────────────────

// txScope repositorios de la transacción en curso y stocks a invalidar tras el commit.
type txScope struct {
	batches   repository.StockBatchRepository
	stocks    repository.StockRepository
	transfers repository.TransferRepository
	touched   []string
}

func (s *txScope) touch(stockIDs ...string) {
	s.touched = append(s.touched, stockIDs...)
}

// itemStep transición de un ítem. apply ajusta el ítem y el libro de lotes antes del update
// condicional; si falla, la transacción completa se revierte.
type itemStep struct {
	action transfer.Action
	notes  string
	apply  func(ctx context.Context, s *txScope, t *entity.Transfer, item *entity.TransferItem) error
}

func (uc *WorkflowUseCase) inTx(ctx context.Context, fn func(s *txScope) error) ([]string, error) {
	var touched []string
	err := uc.txRunner.RunTransfer(ctx, func(
		batchRepo repository.StockBatchRepository,
		stockRepo repository.StockRepository,
		transferRepo repository.TransferRepository,
	) error {
		s := &txScope{batches: batchRepo, stocks: stockRepo, transfers: transferRepo}
		if err := fn(s); err != nil {
			return err
		}
		touched = s.touched
		return nil
	})
	return touched, err
}

// lockTransfer carga el agregado bloqueando la cabecera. Un traslado de otra organización no existe.
func (uc *WorkflowUseCase) lockTransfer(ctx context.Context, s *txScope, actor entity.Actor, transferID string) (*entity.Transfer, error) {
	t, err := s.transfers.GetForUpdate(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("traslado: obtener: %w", err)
	}
	if t == nil || t.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// applyStep valida la transición con la máquina de estados, ejecuta apply, persiste el ítem con
// guarda sobre su estado previo y agrega la fila de historial.
func (uc *WorkflowUseCase) applyStep(ctx context.Context, s *txScope, actor entity.Actor, t *entity.Transfer, item *entity.TransferItem, step itemStep, now time.Time) error {
	from := item.Status
	action := step.action
	if action == transfer.ActionCancel {
		action = transfer.CancelAction(from)
	}
	to, err := transfer.Next(from, action)
	if err != nil {
		return err
	}
	if step.apply != nil {
		if err := step.apply(ctx, s, t, item); err != nil {
			return err
		}
	}

	item.Status = to
	item.UpdatedAt = now
	if notes := strings.TrimSpace(step.notes); notes != "" && action != transfer.ActionCancel && action != transfer.ActionCancelPrepared {
		item.Notes = notes
	}
	ok, err := s.transfers.UpdateItem(ctx, item, from)
	if err != nil {
		return fmt.Errorf("traslado: actualizar ítem: %w", err)
	}
	if !ok {
		// otra operación cambió el ítem primero
		return &domain.InvalidTransitionError{Action: string(action), From: string(from)}
	}
	return s.transfers.AppendHistory(ctx, newHistory(t.ID, item.ID, transfer.HistoryAction(action), string(from), string(to), actor, step.notes, now))
}

func (uc *WorkflowUseCase) cancelStep(reason string, now time.Time) itemStep {
	return itemStep{action: transfer.ActionCancel, notes: reason, apply: func(ctx context.Context, s *txScope, t *entity.Transfer, item *entity.TransferItem) error {
		if item.Status == entity.ItemPrepared {
			if err := uc.engine.ReleasePicks(ctx, s.batches, item.Batches); err != nil {
				return err
			}
			if err := uc.touchSupplying(ctx, s, t, item); err != nil {
				return err
			}
		}
		item.CancelReason = reason
		item.CancelledAt = &now
		return nil
	}}
}

// rollup recalcula el estado del traslado; si cambió, sella la fecha y agrega la fila de historial.
func (uc *WorkflowUseCase) rollup(ctx context.Context, s *txScope, actor entity.Actor, t *entity.Transfer, now time.Time) error {
	prev := t.Status
	next := transfer.Rollup(t.ItemStatuses())
	t.UpdatedAt = now
	if next != prev {
		t.Status = next
		stampTransfer(t, next, now)
	}
	if err := s.transfers.UpdateHeader(ctx, t); err != nil {
		return fmt.Errorf("traslado: actualizar cabecera: %w", err)
	}
	if next == prev {
		return nil
	}
	return s.transfers.AppendHistory(ctx, newHistory(t.ID, "", entity.HistoryStatusChanged, string(prev), string(next), actor, "", now))
}

func stampTransfer(t *entity.Transfer, status entity.TransferStatus, now time.Time) {
	switch status {
	case entity.TransferApproved:
		if t.ApprovedAt == nil {
			t.ApprovedAt = &now
		}
	case entity.TransferPrepared:
		if t.PreparedAt == nil {
			t.PreparedAt = &now
		}
	case entity.TransferCompleted:
		// una cancelación que cierra el traslado no es una entrega: vale la última entrega real
		if t.DeliveredAt == nil {
			t.DeliveredAt = lastDelivery(t)
		}
	case entity.TransferCancelled:
		if t.CancelledAt == nil {
			t.CancelledAt = &now
		}
	}
}

func lastDelivery(t *entity.Transfer) *time.Time {
	var last *time.Time
	for _, it := range t.Items {
		if it.DeliveredAt != nil && (last == nil || it.DeliveredAt.After(*last)) {
			at := *it.DeliveredAt
			last = &at
		}
	}
	return last
}

func (uc *WorkflowUseCase) touchSupplying(ctx context.Context, s *txScope, t *entity.Transfer, item *entity.TransferItem) error {
	stock, err := s.stocks.GetByDepartmentAndProduct(ctx, t.SupplyingDepartment, item.ProductID)
	if err != nil {
		return fmt.Errorf("traslado: stock proveedor: %w", err)
	}
	if stock != nil {
		s.touch(stock.ID)
	}
	return nil
}

func (uc *WorkflowUseCase) requireDepartment(ctx context.Context, actor entity.Actor, id string) error {
	d, err := uc.departmentRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("traslado: obtener departamento: %w", err)
	}
	if d == nil || d.OrganizationID != actor.OrganizationID || !d.IsActive {
		return fmt.Errorf("%w: departamento %s", domain.ErrNotFound, id)
	}
	return nil
}

func (uc *WorkflowUseCase) requireProduct(ctx context.Context, actor entity.Actor, id string) error {
	p, err := uc.productRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("traslado: obtener producto: %w", err)
	}
	if p == nil || p.OrganizationID != actor.OrganizationID || !p.IsActive {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
	}
	return nil
}

// finish efectos posteriores al commit: log, caché y auditoría. Nunca falla.
func (uc *WorkflowUseCase) finish(ctx context.Context, actor entity.Actor, action string, t *entity.Transfer, itemID string, touched []string, payload map[string]any) {
	log.Debug().
		Str("transfer_id", t.ID).
		Str("item_id", itemID).
		Str("action", action).
		Str("status", string(t.Status)).
		Str("user_id", actor.UserID).
		Msg("traslado: operación confirmada")

	ports.InvalidateSummaries(ctx, uc.cache, touched...)

	if payload == nil {
		payload = map[string]any{}
	}
	payload["code"] = t.Code
	payload["transfer_status"] = t.Status
	entityType, entityID := "transfer", t.ID
	if itemID != "" {
		entityType, entityID = "transfer_item", itemID
		payload["transfer_id"] = t.ID
	}
	ports.RecordAudit(ctx, uc.audit, ports.AuditEntry{
		OrganizationID: actor.OrganizationID,
		Category:       ports.AuditCategoryTransfer,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		Actor:          actor.Snapshot(),
		Payload:        payload,
		OccurredAt:     uc.now(),
	})
}

func newHistory(transferID, itemID, action, from, to string, actor entity.Actor, notes string, now time.Time) *entity.TransferHistory {
	return &entity.TransferHistory{
		ID:         uuid.New().String(),
		TransferID: transferID,
		ItemID:     itemID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor.Snapshot(),
		Notes:      strings.TrimSpace(notes),
		CreatedAt:  now,
	}
}
