package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/application/ports"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// StockUseCase operaciones directas sobre el libro de lotes de un departamento:
// entradas, ajustes, reservas FIFO y consulta de cantidades derivadas.
type StockUseCase struct {
	txRunner       TxRunner
	engine         *AllocationEngine
	stockRepo      repository.StockRepository
	batchRepo      repository.StockBatchRepository
	departmentRepo repository.DepartmentRepository
	productRepo    repository.ProductRepository
	cache          ports.StockSummaryCache
	audit          ports.AuditLogger
	now            func() time.Time
}

// NewStockUseCase construye el caso de uso. cache y audit son opcionales (nil).
func NewStockUseCase(
	txRunner TxRunner,
	engine *AllocationEngine,
	stockRepo repository.StockRepository,
	batchRepo repository.StockBatchRepository,
	departmentRepo repository.DepartmentRepository,
	productRepo repository.ProductRepository,
	cache ports.StockSummaryCache,
	audit ports.AuditLogger,
) *StockUseCase {
	return &StockUseCase{
		txRunner:       txRunner,
		engine:         engine,
		stockRepo:      stockRepo,
		batchRepo:      batchRepo,
		departmentRepo: departmentRepo,
		productRepo:    productRepo,
		cache:          cache,
		audit:          audit,
		now:            time.Now,
	}
}

// WithClock reemplaza el reloj (vencimientos y marcas de tiempo).
func (uc *StockUseCase) WithClock(now func() time.Time) *StockUseCase {
	uc.now = now
	return uc
}

// EnsureStock crea la configuración (departamento, producto) si no existe y devuelve la vigente.
func (uc *StockUseCase) EnsureStock(ctx context.Context, actor entity.Actor, in dto.EnsureStockRequest) (*dto.StockResponse, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	if in.DepartmentID == "" {
		return nil, domain.Invalid("department_id", "requerido")
	}
	if in.ProductID == "" {
		return nil, domain.Invalid("product_id", "requerido")
	}
	dept, err := uc.departmentRepo.GetByID(ctx, in.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("stock: obtener departamento: %w", err)
	}
	if dept == nil || dept.OrganizationID != actor.OrganizationID || !dept.IsActive {
		return nil, domain.ErrNotFound
	}
	prod, err := uc.productRepo.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("stock: obtener producto: %w", err)
	}
	if prod == nil || prod.OrganizationID != actor.OrganizationID || !prod.IsActive {
		return nil, domain.ErrNotFound
	}

	now := uc.now()
	var stock *entity.DepartmentStock
	err = uc.txRunner.Run(ctx, func(_ repository.StockBatchRepository, stockRepo repository.StockRepository) error {
		s, err := stockRepo.Ensure(ctx, &entity.DepartmentStock{
			ID:             uuid.New().String(),
			OrganizationID: actor.OrganizationID,
			DepartmentID:   in.DepartmentID,
			ProductID:      in.ProductID,
			MinimumStock:   in.MinimumStock,
			MaximumStock:   in.MaximumStock,
			ReorderPoint:   in.ReorderPoint,
			Location:       strings.TrimSpace(in.Location),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		stock = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return uc.stockResponse(ctx, stock)
}

// GetStock configuración del stock más sus cantidades derivadas e indicador de stock bajo.
func (uc *StockUseCase) GetStock(ctx context.Context, actor entity.Actor, stockID string) (*dto.StockResponse, error) {
	stock, err := uc.loadStock(ctx, actor, stockID)
	if err != nil {
		return nil, err
	}
	return uc.stockResponse(ctx, stock)
}

// ListDepartmentStocks configuraciones de stock del departamento con sus cantidades derivadas.
func (uc *StockUseCase) ListDepartmentStocks(ctx context.Context, actor entity.Actor, departmentID string, page dto.PageRequest) ([]dto.StockResponse, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	dept, err := uc.departmentRepo.GetByID(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("stock: obtener departamento: %w", err)
	}
	if dept == nil || dept.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrNotFound
	}
	page = page.Normalize()
	stocks, err := uc.stockRepo.ListByDepartment(ctx, departmentID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("stock: listar: %w", err)
	}
	out := make([]dto.StockResponse, 0, len(stocks))
	for _, s := range stocks {
		resp, err := uc.stockResponse(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// Summary cantidades derivadas del stock. Usa la caché si está configurada.
func (uc *StockUseCase) Summary(ctx context.Context, actor entity.Actor, stockID string) (entity.StockSummary, error) {
	if _, err := uc.loadStock(ctx, actor, stockID); err != nil {
		return entity.StockSummary{}, err
	}
	return uc.summary(ctx, stockID)
}

// IsLow true si lo disponible está por debajo del mínimo configurado.
func (uc *StockUseCase) IsLow(ctx context.Context, actor entity.Actor, stockID string) (bool, error) {
	stock, err := uc.loadStock(ctx, actor, stockID)
	if err != nil {
		return false, err
	}
	s, err := uc.summary(ctx, stockID)
	if err != nil {
		return false, err
	}
	return stock.IsLow(s), nil
}

// ListBatches lotes del stock (incluye inactivos y vencidos) en orden FIFO.
func (uc *StockUseCase) ListBatches(ctx context.Context, actor entity.Actor, stockID string) ([]dto.BatchResponse, error) {
	if _, err := uc.loadStock(ctx, actor, stockID); err != nil {
		return nil, err
	}
	batches, err := uc.batchRepo.ListByStock(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("stock: listar lotes: %w", err)
	}
	inventory.SortFIFO(batches)
	out := make([]dto.BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, dto.NewBatchResponse(b))
	}
	return out, nil
}

// ReceiveBatch registra la entrada de un lote nuevo con todo su stock disponible.
// domain.ErrDuplicateLot si el número de lote ya existe en el stock.
func (uc *StockUseCase) ReceiveBatch(ctx context.Context, actor entity.Actor, stockID string, in dto.ReceiveBatchRequest) (*dto.BatchResponse, error) {
	lot := strings.TrimSpace(in.LotNumber)
	if lot == "" {
		return nil, domain.Invalid("lot_number", "requerido")
	}
	if in.Quantity <= 0 {
		return nil, domain.Invalid("quantity", "debe ser mayor que cero")
	}
	if in.CostPrice.IsNegative() || in.SellingPrice.IsNegative() {
		return nil, domain.Invalid("price", "no puede ser negativo")
	}
	if _, err := uc.loadStock(ctx, actor, stockID); err != nil {
		return nil, err
	}

	now := uc.now()
	b := &entity.StockBatch{
		ID:                uuid.New().String(),
		StockID:           stockID,
		LotNumber:         lot,
		ExpiryDate:        in.ExpiryDate,
		ManufactureDate:   in.ManufactureDate,
		Supplier:          strings.TrimSpace(in.Supplier),
		CostPrice:         in.CostPrice,
		SellingPrice:      in.SellingPrice,
		TotalQuantity:     in.Quantity,
		AvailableQuantity: in.Quantity,
		Status:            entity.BatchAvailable,
		IsActive:          true,
		Location:          strings.TrimSpace(in.Location),
		ReceivedAt:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := uc.txRunner.Run(ctx, func(batchRepo repository.StockBatchRepository, _ repository.StockRepository) error {
		return batchRepo.Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	uc.afterMutation(ctx, actor, "BATCH_RECEIVED", b.ID, stockID, map[string]any{
		"lot_number": lot,
		"quantity":   in.Quantity,
	})
	resp := dto.NewBatchResponse(b)
	return &resp, nil
}

// AdjustBatch aplica un delta firmado sobre disponible y total de un lote (conteo físico, merma).
// Nunca deja el disponible por debajo de cero.
func (uc *StockUseCase) AdjustBatch(ctx context.Context, actor entity.Actor, batchID string, in dto.AdjustBatchRequest) (*dto.BatchResponse, error) {
	if in.Delta == 0 {
		return nil, domain.Invalid("delta", "no puede ser cero")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, domain.Invalid("reason", "requerido")
	}
	b, err := uc.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("stock: obtener lote: %w", err)
	}
	if b == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := uc.loadStock(ctx, actor, b.StockID); err != nil {
		return nil, err
	}

	var updated *entity.StockBatch
	err = uc.txRunner.Run(ctx, func(batchRepo repository.StockBatchRepository, _ repository.StockRepository) error {
		ok, err := batchRepo.Adjust(ctx, batchID, in.Delta)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InsufficientStockError{StockID: b.StockID, Requested: -in.Delta, Shortfall: -in.Delta - b.AvailableQuantity}
		}
		updated, err = batchRepo.GetByID(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.afterMutation(ctx, actor, "BATCH_ADJUSTED", batchID, b.StockID, map[string]any{
		"lot_number":       b.LotNumber,
		"delta":            in.Delta,
		"reason":           in.Reason,
		"available_before": b.AvailableQuantity,
		"available_after":  updated.AvailableQuantity,
	})
	resp := dto.NewBatchResponse(updated)
	return &resp, nil
}

// Reserve reserva quantity por FIFO. Todo o nada: con faltante la transacción se revierte y
// se devuelve *domain.InsufficientStockError.
func (uc *StockUseCase) Reserve(ctx context.Context, actor entity.Actor, stockID string, quantity int64) (*dto.AllocationResponse, error) {
	if quantity <= 0 {
		return nil, domain.Invalid("quantity", "debe ser mayor que cero")
	}
	if _, err := uc.loadStock(ctx, actor, stockID); err != nil {
		return nil, err
	}
	var plan []inventory.Allocation
	err := uc.txRunner.Run(ctx, func(batchRepo repository.StockBatchRepository, _ repository.StockRepository) error {
		var err error
		plan, err = uc.engine.ReserveFIFO(ctx, batchRepo, stockID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.afterMutation(ctx, actor, "STOCK_RESERVED", stockID, stockID, map[string]any{
		"quantity":    quantity,
		"allocations": plan,
	})
	return uc.allocationResponse(ctx, stockID, quantity, plan)
}

// Release devuelve quantity de lo reservado a disponible, del lote más antiguo al más reciente.
func (uc *StockUseCase) Release(ctx context.Context, actor entity.Actor, stockID string, quantity int64) (*dto.AllocationResponse, error) {
	if quantity <= 0 {
		return nil, domain.Invalid("quantity", "debe ser mayor que cero")
	}
	if _, err := uc.loadStock(ctx, actor, stockID); err != nil {
		return nil, err
	}
	var plan []inventory.Allocation
	err := uc.txRunner.Run(ctx, func(batchRepo repository.StockBatchRepository, _ repository.StockRepository) error {
		var err error
		plan, err = uc.engine.Release(ctx, batchRepo, stockID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.afterMutation(ctx, actor, "STOCK_RELEASED", stockID, stockID, map[string]any{
		"quantity":    quantity,
		"allocations": plan,
	})
	return uc.allocationResponse(ctx, stockID, quantity, plan)
}

func (uc *StockUseCase) loadStock(ctx context.Context, actor entity.Actor, stockID string) (*entity.DepartmentStock, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	stock, err := uc.stockRepo.GetByID(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("stock: obtener: %w", err)
	}
	if stock == nil || stock.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrNotFound
	}
	return stock, nil
}

func (uc *StockUseCase) summary(ctx context.Context, stockID string) (entity.StockSummary, error) {
	if uc.cache != nil {
		if cached, err := uc.cache.Get(ctx, stockID); err == nil && cached != nil {
			return *cached, nil
		}
	}
	s, err := uc.batchRepo.Summarize(ctx, stockID, uc.now())
	if err != nil {
		return entity.StockSummary{}, fmt.Errorf("stock: resumen: %w", err)
	}
	if uc.cache != nil {
		_ = uc.cache.Set(ctx, s)
	}
	return s, nil
}

func (uc *StockUseCase) stockResponse(ctx context.Context, stock *entity.DepartmentStock) (*dto.StockResponse, error) {
	s, err := uc.summary(ctx, stock.ID)
	if err != nil {
		return nil, err
	}
	return &dto.StockResponse{
		ID:           stock.ID,
		DepartmentID: stock.DepartmentID,
		ProductID:    stock.ProductID,
		MinimumStock: stock.MinimumStock,
		MaximumStock: stock.MaximumStock,
		ReorderPoint: stock.ReorderPoint,
		Location:     stock.Location,
		Summary:      s,
		IsLow:        stock.IsLow(s),
	}, nil
}

func (uc *StockUseCase) allocationResponse(ctx context.Context, stockID string, quantity int64, plan []inventory.Allocation) (*dto.AllocationResponse, error) {
	s, err := uc.summary(ctx, stockID)
	if err != nil {
		return nil, err
	}
	out := &dto.AllocationResponse{StockID: stockID, Quantity: quantity, Summary: s, Allocations: make([]dto.AllocationDTO, 0, len(plan))}
	for _, a := range plan {
		out.Allocations = append(out.Allocations, dto.AllocationDTO{BatchID: a.BatchID, Quantity: a.Quantity})
	}
	return out, nil
}

// afterMutation invalida la caché del stock y registra la auditoría. Nunca falla.
func (uc *StockUseCase) afterMutation(ctx context.Context, actor entity.Actor, action, entityID, stockID string, payload map[string]any) {
	ports.InvalidateSummaries(ctx, uc.cache, stockID)
	ports.RecordAudit(ctx, uc.audit, ports.AuditEntry{
		OrganizationID: actor.OrganizationID,
		Category:       ports.AuditCategoryInventory,
		Action:         action,
		EntityType:     "stock",
		EntityID:       entityID,
		Actor:          actor.Snapshot(),
		Payload:        payload,
		OccurredAt:     uc.now(),
	})
}
