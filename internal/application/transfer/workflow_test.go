package transfer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	appinventory "github.com/jhoicas/traslados-api/internal/application/inventory"
	apptransfer "github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/infrastructure/memory"
)

// ── Fixture ───────────────────────────────────────────────────────────────────

const (
	org        = "org-1"
	farmacia   = "dep-farmacia"  // proveedor
	urgencias  = "dep-urgencias" // solicitante
	gasas      = "prod-gasas"
	jeringas   = "prod-jeringas"
	otherOrgID = "org-2"
)

var day1 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	clock  *clock
	wf     *apptransfer.WorkflowUseCase
	query  *apptransfer.QueryUseCase
	stock  *appinventory.StockUseCase
	admin  entity.Actor
	member entity.Actor

	supplyStockID string
	lot1, lot2    string // 5 unidades cada uno; lot1 más antiguo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		store:  memory.NewStore(),
		clock:  &clock{now: day1},
		admin:  entity.Actor{UserID: "u-admin", OrganizationID: org, Name: "Ana Admin", Role: entity.RoleAdmin},
		member: entity.Actor{UserID: "u-member", OrganizationID: org, Name: "Mario Miembro", Role: entity.RoleMember},
	}
	f.store.AddDepartment(entity.Department{ID: farmacia, OrganizationID: org, Name: "Farmacia", Code: "FAR", IsActive: true})
	f.store.AddDepartment(entity.Department{ID: urgencias, OrganizationID: org, Name: "Urgencias", Code: "URG", IsActive: true})
	f.store.AddDepartment(entity.Department{ID: "dep-externo", OrganizationID: otherOrgID, Name: "Externo", Code: "EXT", IsActive: true})
	f.store.AddProduct(entity.Product{ID: gasas, OrganizationID: org, Code: "GAS-01", Name: "Gasas estériles", BaseUnit: "UND", IsActive: true})
	f.store.AddProduct(entity.Product{ID: jeringas, OrganizationID: org, Code: "JER-05", Name: "Jeringas 5ml", BaseUnit: "UND", IsActive: true})

	engine := appinventory.NewAllocationEngine().WithClock(f.clock.Now)
	f.stock = appinventory.NewStockUseCase(f.store, engine, f.store.Stocks(), f.store.Batches(),
		f.store.Departments(), f.store.Products(), nil, f.store).WithClock(f.clock.Now)
	f.wf = apptransfer.NewWorkflowUseCase(f.store, engine, f.store.Transfers(),
		f.store.Departments(), f.store.Products(), nil, f.store).WithClock(f.clock.Now)
	f.query = apptransfer.NewQueryUseCase(f.store.Transfers(), f.store.Departments(), f.store.Products(), f.store.Batches())

	f.supplyStockID = f.ensureStock(t, farmacia, gasas)
	f.lot1 = f.receive(t, f.supplyStockID, "L-001", 5)
	f.clock.Set(day1.AddDate(0, 0, 1))
	f.lot2 = f.receive(t, f.supplyStockID, "L-002", 5)
	f.clock.Set(day1.AddDate(0, 0, 2))
	return f
}

func (f *fixture) ensureStock(t *testing.T, dept, product string) string {
	t.Helper()
	s, err := f.stock.EnsureStock(f.ctx, f.admin, dto.EnsureStockRequest{DepartmentID: dept, ProductID: product})
	require.NoError(t, err)
	return s.ID
}

func (f *fixture) receive(t *testing.T, stockID, lot string, qty int64) string {
	t.Helper()
	b, err := f.stock.ReceiveBatch(f.ctx, f.admin, stockID, dto.ReceiveBatchRequest{LotNumber: lot, Quantity: qty})
	require.NoError(t, err)
	return b.ID
}

func (f *fixture) create(t *testing.T, code string, items ...dto.CreateTransferItemRequest) *entity.Transfer {
	t.Helper()
	tr, err := f.wf.CreateTransfer(f.ctx, f.member, dto.CreateTransferRequest{
		Code:                   code,
		RequestingDepartmentID: urgencias,
		SupplyingDepartmentID:  farmacia,
		Priority:               "urgent",
		Items:                  items,
	})
	require.NoError(t, err)
	return tr
}

func (f *fixture) summary(t *testing.T, stockID string) entity.StockSummary {
	t.Helper()
	s, err := f.stock.Summary(f.ctx, f.admin, stockID)
	require.NoError(t, err)
	return s
}

func (f *fixture) requestingStockID(t *testing.T) string {
	t.Helper()
	s, err := f.store.Stocks().GetByDepartmentAndProduct(f.ctx, urgencias, gasas)
	require.NoError(t, err)
	require.NotNil(t, s, "el stock receptor debe crearse al entregar")
	return s.ID
}

func (f *fixture) assertInvariant(t *testing.T, stockIDs ...string) {
	t.Helper()
	for _, id := range stockIDs {
		batches, err := f.store.Batches().ListByStock(f.ctx, id)
		require.NoError(t, err)
		for _, b := range batches {
			assert.NoError(t, b.CheckInvariant())
		}
	}
}

func item(product string, qty int64) dto.CreateTransferItemRequest {
	return dto.CreateTransferItemRequest{ProductID: product, Quantity: qty}
}

func qty(v int64) *int64 { return &v }

// ── Creación ──────────────────────────────────────────────────────────────────

func TestCreateTransfer_Valido(t *testing.T) {
	f := newFixture(t)

	tr := f.create(t, "TR-001", item(gasas, 7))

	assert.Equal(t, entity.TransferPending, tr.Status)
	assert.Equal(t, entity.PriorityUrgent, tr.Priority)
	assert.Equal(t, "TR-001", tr.Title)
	assert.Equal(t, "u-member", tr.RequestedBy.UserID)
	require.Len(t, tr.Items, 1)
	assert.Equal(t, entity.ItemPending, tr.Items[0].Status)

	// no reserva al crear
	assert.Equal(t, int64(0), f.summary(t, f.supplyStockID).ReservedQuantity)

	history, err := f.query.GetTransferHistory(f.ctx, f.member, tr.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Len(t, f.store.AuditEntries(), 3) // 2 entradas de lote + creación
}

func TestCreateTransfer_Validaciones(t *testing.T) {
	f := newFixture(t)
	base := dto.CreateTransferRequest{
		Code:                   "TR-X",
		RequestingDepartmentID: urgencias,
		SupplyingDepartmentID:  farmacia,
		Items:                  []dto.CreateTransferItemRequest{item(gasas, 1)},
	}

	t.Run("mismo departamento", func(t *testing.T) {
		in := base
		in.SupplyingDepartmentID = urgencias
		_, err := f.wf.CreateTransfer(f.ctx, f.member, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("cantidad no positiva", func(t *testing.T) {
		in := base
		in.Items = []dto.CreateTransferItemRequest{item(gasas, 0)}
		_, err := f.wf.CreateTransfer(f.ctx, f.member, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("sin ítems", func(t *testing.T) {
		in := base
		in.Items = nil
		_, err := f.wf.CreateTransfer(f.ctx, f.member, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("producto inexistente", func(t *testing.T) {
		in := base
		in.Items = []dto.CreateTransferItemRequest{item("prod-fantasma", 1)}
		_, err := f.wf.CreateTransfer(f.ctx, f.member, in)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("departamento de otra organización", func(t *testing.T) {
		in := base
		in.SupplyingDepartmentID = "dep-externo"
		_, err := f.wf.CreateTransfer(f.ctx, f.member, in)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("prioridad desconocida", func(t *testing.T) {
		in := base
		in.Priority = "YA"
		_, err := f.wf.CreateTransfer(f.ctx, f.member, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("código duplicado", func(t *testing.T) {
		_, err := f.wf.CreateTransfer(f.ctx, f.member, base)
		require.NoError(t, err)
		_, err = f.wf.CreateTransfer(f.ctx, f.member, base)
		assert.ErrorIs(t, err, domain.ErrDuplicateCode)
		assert.ErrorIs(t, err, domain.ErrDuplicate)
	})
}

// ── Aprobación ────────────────────────────────────────────────────────────────

func TestApproveItem_Idempotencia(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-002", item(gasas, 7))
	itemID := tr.Items[0].ID

	approved, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, int64(7), *approved.Items[0].ApprovedQuantity)

	_, err = f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	var te *domain.InvalidTransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, string(entity.ItemApproved), te.From)
}

func TestApproveItem_CantidadReducida(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-003", item(gasas, 7))
	itemID := tr.Items[0].ID

	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{ApprovedQuantity: qty(8)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ItemPending, reloaded.Items[0].Status, "una validación fallida no cambia estado")

	approved, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{ApprovedQuantity: qty(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), *approved.Items[0].ApprovedQuantity)
}

func TestApproveAll(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-004", item(gasas, 2), item(jeringas, 4))

	approved, err := f.wf.ApproveAll(f.ctx, f.member, tr.ID, dto.NotesRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferApproved, approved.Status)
	for _, it := range approved.Items {
		assert.Equal(t, entity.ItemApproved, it.Status)
		assert.Equal(t, it.RequestedQuantity, *it.ApprovedQuantity)
	}

	_, err = f.wf.ApproveAll(f.ctx, f.member, tr.ID, dto.NotesRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApproveItem_ConcurrenteSoloUnoGana(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-005", item(gasas, 5))
	itemID := tr.Items[0].ID

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInvalidTransition):
			invalid++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)

	history, err := f.query.GetTransferHistory(f.ctx, f.member, tr.ID)
	require.NoError(t, err)
	approvals := 0
	for _, h := range history {
		if h.Action == entity.HistoryApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

// ── Preparación y entrega ─────────────────────────────────────────────────────

func TestFlujoCompleto_EntregaTotal(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-010", item(gasas, 7))
	itemID := tr.Items[0].ID

	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)

	prepared, err := f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 5}, {BatchID: f.lot2, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferPrepared, prepared.Status)
	require.Len(t, prepared.Items[0].Batches, 2)
	assert.Equal(t, "L-001", prepared.Items[0].Batches[0].LotNumber)

	s := f.summary(t, f.supplyStockID)
	assert.Equal(t, int64(3), s.AvailableQuantity)
	assert.Equal(t, int64(7), s.ReservedQuantity)
	assert.Equal(t, int64(10), s.TotalQuantity)

	delivered, err := f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCompleted, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, int64(7), *delivered.Items[0].ReceivedQuantity)

	supply := f.summary(t, f.supplyStockID)
	assert.Equal(t, entity.StockSummary{StockID: f.supplyStockID, TotalQuantity: 3, AvailableQuantity: 3, BatchCount: 1}, supply)

	reqStockID := f.requestingStockID(t)
	received := f.summary(t, reqStockID)
	assert.Equal(t, int64(7), received.TotalQuantity)
	assert.Equal(t, int64(7), received.AvailableQuantity)
	assert.Equal(t, 2, received.BatchCount)

	f.assertInvariant(t, f.supplyStockID, reqStockID)

	history, err := f.query.GetTransferHistory(f.ctx, f.member, tr.ID)
	require.NoError(t, err)
	assert.Len(t, history, 8)
	assert.Equal(t, entity.HistoryCreated, history[0].Action)
	assert.Equal(t, string(entity.TransferCompleted), history[len(history)-1].ToStatus)
}

func TestPrepareItem_SumaDistintaALoAprobado(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-011", item(gasas, 10))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)

	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 5}, {BatchID: f.lot2, Quantity: 3}},
	})
	var oe *domain.BatchOverAllocationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, int64(8), oe.Requested)
	assert.Equal(t, int64(10), oe.Available)

	assert.Equal(t, int64(0), f.summary(t, f.supplyStockID).ReservedQuantity)
	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ItemApproved, reloaded.Items[0].Status)
	assert.Empty(t, reloaded.Items[0].Batches)
}

func TestPrepareItem_LoteExcedido(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-012", item(gasas, 6))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)

	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 6}},
	})
	assert.ErrorIs(t, err, domain.ErrBatchOverAllocation)
	assert.Equal(t, int64(10), f.summary(t, f.supplyStockID).AvailableQuantity)
}

func TestDeliverItem_EntregaParcial(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-013", item(gasas, 10))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	prepared, err := f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 5}, {BatchID: f.lot2, Quantity: 5}},
	})
	require.NoError(t, err)
	pick2 := prepared.Items[0].Batches[1]

	// llegaron 2 unidades dañadas del segundo lote
	delivered, err := f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{
		Receipts: []dto.BatchReceiptRequest{{TransferBatchID: pick2.ID, ReceivedQuantity: 3}},
	})
	require.NoError(t, err)

	it := delivered.Items[0]
	assert.Equal(t, entity.ItemDelivered, it.Status)
	assert.Equal(t, int64(10), *it.PreparedQuantity)
	assert.Equal(t, int64(8), *it.ReceivedQuantity)

	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	for _, b := range reloaded.Items[0].Batches {
		require.NotNil(t, b.ReceivedQuantity)
		if b.ID == pick2.ID {
			assert.Equal(t, int64(3), *b.ReceivedQuantity)
		} else {
			assert.Equal(t, int64(5), *b.ReceivedQuantity)
		}
	}

	assert.Equal(t, int64(0), f.summary(t, f.supplyStockID).TotalQuantity)
	reqStockID := f.requestingStockID(t)
	assert.Equal(t, int64(8), f.summary(t, reqStockID).TotalQuantity)
	f.assertInvariant(t, f.supplyStockID, reqStockID)
}

func TestDeliverItem_RecibidoMayorADespachado(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-014", item(gasas, 4))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	prepared, err := f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{
		Receipts: []dto.BatchReceiptRequest{{TransferBatchID: prepared.Items[0].Batches[0].ID, ReceivedQuantity: 5}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	s := f.summary(t, f.supplyStockID)
	assert.Equal(t, int64(4), s.ReservedQuantity, "la reserva sigue intacta")
	assert.Equal(t, int64(10), s.TotalQuantity)
}

func TestDeliverItem_MismoLoteSeAcreditaSobreElExistente(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"TR-015", "TR-016"} {
		tr := f.create(t, code, item(gasas, 2))
		itemID := tr.Items[0].ID
		_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
		require.NoError(t, err)
		_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
			Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 2}},
		})
		require.NoError(t, err)
		_, err = f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{})
		require.NoError(t, err)
	}

	s := f.summary(t, f.requestingStockID(t))
	assert.Equal(t, int64(4), s.TotalQuantity)
	assert.Equal(t, 1, s.BatchCount)
}

func TestDeliverItem_LoteDestinoEnCuarentenaRevierte(t *testing.T) {
	f := newFixture(t)
	reqStockID := f.ensureStock(t, urgencias, gasas)
	require.NoError(t, f.store.Batches().Create(f.ctx, &entity.StockBatch{
		ID: "lote-cuarentena", StockID: reqStockID, LotNumber: "L-001",
		TotalQuantity: 1, AvailableQuantity: 1, Status: entity.BatchQuarantine, IsActive: true,
		ReceivedAt: day1, CreatedAt: day1, UpdatedAt: day1,
	}))

	tr := f.create(t, "TR-017", item(gasas, 5))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 5}},
	})
	require.NoError(t, err)

	_, err = f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{})
	var mismatch *domain.LotMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "QUARANTINE", mismatch.Status)

	quarantined, err := f.store.Batches().GetByID(f.ctx, "lote-cuarentena")
	require.NoError(t, err)
	assert.Equal(t, int64(1), quarantined.AvailableQuantity)
	assert.Equal(t, entity.BatchQuarantine, quarantined.Status)

	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ItemPrepared, reloaded.Items[0].Status)
	assert.Equal(t, int64(5), f.summary(t, f.supplyStockID).ReservedQuantity)
	f.assertInvariant(t, f.supplyStockID, reqStockID)
}

func TestDeliverItem_LoteDestinoConOtroVencimientoRevierte(t *testing.T) {
	f := newFixture(t)
	reqStockID := f.ensureStock(t, urgencias, gasas)
	expiry := day1.AddDate(1, 0, 0)
	_, err := f.stock.ReceiveBatch(f.ctx, f.admin, reqStockID, dto.ReceiveBatchRequest{
		LotNumber: "L-001", Quantity: 2, ExpiryDate: &expiry,
	})
	require.NoError(t, err)

	tr := f.create(t, "TR-018", item(gasas, 3))
	itemID := tr.Items[0].ID
	_, err = f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 3}},
	})
	require.NoError(t, err)

	_, err = f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{})
	assert.ErrorIs(t, err, domain.ErrConflict)

	s := f.summary(t, reqStockID)
	assert.Equal(t, int64(2), s.TotalQuantity)
	assert.Equal(t, int64(3), f.summary(t, f.supplyStockID).ReservedQuantity)
}

func TestStockRelease_NoLiberaReservasDeTrasladosPreparados(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-019", item(gasas, 7))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 5}, {BatchID: f.lot2, Quantity: 2}},
	})
	require.NoError(t, err)

	// reserva anónima sobre lo que queda libre de L-002
	_, err = f.stock.Reserve(f.ctx, f.member, f.supplyStockID, 3)
	require.NoError(t, err)
	require.Equal(t, int64(10), f.summary(t, f.supplyStockID).ReservedQuantity)

	_, err = f.stock.Release(f.ctx, f.member, f.supplyStockID, 10)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(10), f.summary(t, f.supplyStockID).ReservedQuantity)

	released, err := f.stock.Release(f.ctx, f.member, f.supplyStockID, 3)
	require.NoError(t, err)
	require.Len(t, released.Allocations, 1)
	assert.Equal(t, f.lot2, released.Allocations[0].BatchID)

	_, err = f.stock.Release(f.ctx, f.member, f.supplyStockID, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	delivered, err := f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.ItemDelivered, delivered.Items[0].Status)
	f.assertInvariant(t, f.supplyStockID)
}

// ── Rollup ────────────────────────────────────────────────────────────────────

func TestRollup_EntregadoMasCanceladoEsCompletado(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-020", item(gasas, 3), item(jeringas, 1))
	gasasItem, jeringasItem := tr.Items[0].ID, tr.Items[1].ID

	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, gasasItem, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, gasasItem, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 3}},
	})
	require.NoError(t, err)
	partial, err := f.wf.DeliverItem(f.ctx, f.member, tr.ID, gasasItem, dto.DeliverItemRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferPartial, partial.Status)

	done, err := f.wf.CancelItem(f.ctx, f.admin, tr.ID, jeringasItem, dto.CancelRequest{Reason: "sin existencias"})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCompleted, done.Status)
}

func TestCancelTransfer_ParcialConservaLaFechaDeEntrega(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-021", item(gasas, 3), item(jeringas, 1))
	gasasItem := tr.Items[0].ID

	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, gasasItem, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, gasasItem, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 3}},
	})
	require.NoError(t, err)
	deliveredAt := day1.AddDate(0, 0, 3)
	f.clock.Set(deliveredAt)
	partial, err := f.wf.DeliverItem(f.ctx, f.member, tr.ID, gasasItem, dto.DeliverItemRequest{})
	require.NoError(t, err)
	require.Equal(t, entity.TransferPartial, partial.Status)
	assert.Nil(t, partial.DeliveredAt)

	cancelAt := day1.AddDate(0, 0, 5)
	f.clock.Set(cancelAt)
	done, err := f.wf.CancelTransfer(f.ctx, f.admin, tr.ID, dto.CancelRequest{Reason: "cierre de turno"})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCompleted, done.Status)
	require.NotNil(t, done.CancelledAt)
	assert.True(t, done.CancelledAt.Equal(cancelAt))
	require.NotNil(t, done.DeliveredAt)
	assert.True(t, done.DeliveredAt.Equal(deliveredAt), "la fecha de entrega no debe ser la de la cancelación")

	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.DeliveredAt)
	assert.True(t, reloaded.DeliveredAt.Equal(deliveredAt))
}

func TestCancelTransfer_SinEntregasNoFijaFechaDeEntrega(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-022", item(gasas, 2))

	cancelled, err := f.wf.CancelTransfer(f.ctx, f.admin, tr.ID, dto.CancelRequest{Reason: "duplicado"})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCancelled, cancelled.Status)
	assert.Nil(t, cancelled.DeliveredAt)
}

// ── Cancelación ───────────────────────────────────────────────────────────────

func TestCancelItem_RequiereRolElevado(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-030", item(gasas, 3))

	_, err := f.wf.CancelItem(f.ctx, f.member, tr.ID, tr.Items[0].ID, dto.CancelRequest{Reason: "ya no se necesita"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ItemPending, reloaded.Items[0].Status)
}

func TestCancelItem_MotivoObligatorio(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-031", item(gasas, 3))

	_, err := f.wf.CancelItem(f.ctx, f.admin, tr.ID, tr.Items[0].ID, dto.CancelRequest{Reason: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancelItem_PreparadoLiberaLaReserva(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-032", item(gasas, 7))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot2, Quantity: 5}, {BatchID: f.lot1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), f.summary(t, f.supplyStockID).ReservedQuantity)

	cancelled, err := f.wf.CancelItem(f.ctx, f.admin, tr.ID, itemID, dto.CancelRequest{Reason: "paciente trasladado"})
	require.NoError(t, err)
	assert.Equal(t, entity.ItemCancelled, cancelled.Items[0].Status)
	assert.Equal(t, "paciente trasladado", cancelled.Items[0].CancelReason)
	assert.Equal(t, entity.TransferCancelled, cancelled.Status)

	s := f.summary(t, f.supplyStockID)
	assert.Equal(t, int64(0), s.ReservedQuantity)
	assert.Equal(t, int64(10), s.AvailableQuantity)
	f.assertInvariant(t, f.supplyStockID)

	lot2, err := f.store.Batches().GetByID(f.ctx, f.lot2)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchAvailable, lot2.Status)
}

func TestCancelItem_EntregadoNoSeCancela(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-033", item(gasas, 1))
	itemID := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, itemID, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, itemID, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = f.wf.DeliverItem(f.ctx, f.member, tr.ID, itemID, dto.DeliverItemRequest{})
	require.NoError(t, err)

	_, err = f.wf.CancelItem(f.ctx, f.admin, tr.ID, itemID, dto.CancelRequest{Reason: "error"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.wf.CancelTransfer(f.ctx, f.admin, tr.ID, dto.CancelRequest{Reason: "error"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelTransfer_CancelaTodosLosItems(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-034", item(gasas, 4), item(jeringas, 2))
	gasasItem := tr.Items[0].ID
	_, err := f.wf.ApproveItem(f.ctx, f.member, tr.ID, gasasItem, dto.ApproveItemRequest{})
	require.NoError(t, err)
	_, err = f.wf.PrepareItem(f.ctx, f.member, tr.ID, gasasItem, dto.PrepareItemRequest{
		Batches: []dto.PickRequest{{BatchID: f.lot1, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = f.wf.CancelTransfer(f.ctx, f.member, tr.ID, dto.CancelRequest{Reason: "duplicado"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := f.wf.CancelTransfer(f.ctx, f.admin, tr.ID, dto.CancelRequest{Reason: "duplicado"})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCancelled, cancelled.Status)
	assert.Equal(t, "duplicado", cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)
	for _, it := range cancelled.Items {
		assert.Equal(t, entity.ItemCancelled, it.Status)
	}
	assert.Equal(t, int64(0), f.summary(t, f.supplyStockID).ReservedQuantity)

	_, err = f.wf.CancelTransfer(f.ctx, f.admin, tr.ID, dto.CancelRequest{Reason: "otra vez"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ── Efectos colaterales ───────────────────────────────────────────────────────

func TestAuditoriaFallidaNoRevierteLaOperacion(t *testing.T) {
	f := newFixture(t)
	f.store.FailAudit(errors.New("audit caído"))

	tr := f.create(t, "TR-040", item(gasas, 1))

	reloaded, err := f.store.Transfers().GetByID(f.ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
}

func TestOtraOrganizacionNoVeElTraslado(t *testing.T) {
	f := newFixture(t)
	tr := f.create(t, "TR-041", item(gasas, 1))
	intruso := entity.Actor{UserID: "u-x", OrganizationID: otherOrgID, Role: entity.RoleOwner}

	_, err := f.wf.ApproveItem(f.ctx, intruso, tr.ID, tr.Items[0].ID, dto.ApproveItemRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.query.GetTransferWithDetails(f.ctx, intruso, tr.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
