package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	appinventory "github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/internal/infrastructure/memory"
)

var day1 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type env struct {
	ctx     context.Context
	store   *memory.Store
	engine  *appinventory.AllocationEngine
	uc      *appinventory.StockUseCase
	now     time.Time
	actor   entity.Actor
	stockID string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		ctx:   context.Background(),
		store: memory.NewStore(),
		now:   day1,
		actor: entity.Actor{UserID: "u-1", OrganizationID: "org-1", Name: "Operador", Role: entity.RoleMember},
	}
	clock := func() time.Time { return e.now }
	e.store.AddDepartment(entity.Department{ID: "dep-1", OrganizationID: "org-1", Name: "Bodega central", IsActive: true})
	e.store.AddProduct(entity.Product{ID: "prod-1", OrganizationID: "org-1", Code: "ALC-70", Name: "Alcohol 70%", IsActive: true})

	e.engine = appinventory.NewAllocationEngine().WithClock(clock)
	e.uc = appinventory.NewStockUseCase(e.store, e.engine, e.store.Stocks(), e.store.Batches(),
		e.store.Departments(), e.store.Products(), nil, e.store).WithClock(clock)

	minimum := int64(4)
	s, err := e.uc.EnsureStock(e.ctx, e.actor, dto.EnsureStockRequest{DepartmentID: "dep-1", ProductID: "prod-1", MinimumStock: &minimum})
	require.NoError(t, err)
	e.stockID = s.ID
	return e
}

// receive registra un lote con fecha de recepción daysAfter días después de day1.
func (e *env) receive(t *testing.T, lot string, qty int64, daysAfter int) string {
	t.Helper()
	e.now = day1.AddDate(0, 0, daysAfter)
	b, err := e.uc.ReceiveBatch(e.ctx, e.actor, e.stockID, dto.ReceiveBatchRequest{LotNumber: lot, Quantity: qty})
	require.NoError(t, err)
	return b.ID
}

func (e *env) summary(t *testing.T) entity.StockSummary {
	t.Helper()
	s, err := e.uc.Summary(e.ctx, e.actor, e.stockID)
	require.NoError(t, err)
	return s
}

func (e *env) assertInvariant(t *testing.T) {
	t.Helper()
	batches, err := e.store.Batches().ListByStock(e.ctx, e.stockID)
	require.NoError(t, err)
	for _, b := range batches {
		assert.NoError(t, b.CheckInvariant())
	}
}

func TestEnsureStock_UnaFilaPorPar(t *testing.T) {
	e := newEnv(t)

	again, err := e.uc.EnsureStock(e.ctx, e.actor, dto.EnsureStockRequest{DepartmentID: "dep-1", ProductID: "prod-1"})
	require.NoError(t, err)
	assert.Equal(t, e.stockID, again.ID)

	_, err = e.uc.EnsureStock(e.ctx, e.actor, dto.EnsureStockRequest{DepartmentID: "dep-x", ProductID: "prod-1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceiveBatch_LoteDuplicado(t *testing.T) {
	e := newEnv(t)
	e.receive(t, "A-1", 5, 0)

	_, err := e.uc.ReceiveBatch(e.ctx, e.actor, e.stockID, dto.ReceiveBatchRequest{LotNumber: "A-1", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateLot)

	_, err = e.uc.ReceiveBatch(e.ctx, e.actor, e.stockID, dto.ReceiveBatchRequest{LotNumber: "A-2", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReserve_FIFOYLiberacion(t *testing.T) {
	e := newEnv(t)
	first := e.receive(t, "A-1", 5, 0)
	second := e.receive(t, "A-2", 5, 1)

	res, err := e.uc.Reserve(e.ctx, e.actor, e.stockID, 7)
	require.NoError(t, err)
	assert.Equal(t, []dto.AllocationDTO{{BatchID: first, Quantity: 5}, {BatchID: second, Quantity: 2}}, res.Allocations)
	assert.Equal(t, int64(3), res.Summary.AvailableQuantity)
	assert.Equal(t, int64(7), res.Summary.ReservedQuantity)

	b1, err := e.store.Batches().GetByID(e.ctx, first)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchReserved, b1.Status)

	// reserveFIFO seguido de release de lo mismo deja el libro como estaba
	_, err = e.uc.Release(e.ctx, e.actor, e.stockID, 7)
	require.NoError(t, err)
	s := e.summary(t)
	assert.Equal(t, int64(10), s.AvailableQuantity)
	assert.Equal(t, int64(0), s.ReservedQuantity)

	b1, err = e.store.Batches().GetByID(e.ctx, first)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchAvailable, b1.Status)
	e.assertInvariant(t)
}

func TestReserve_FaltanteRevierteTodo(t *testing.T) {
	e := newEnv(t)
	e.receive(t, "A-1", 3, 0)
	e.receive(t, "A-2", 2, 1)

	_, err := e.uc.Reserve(e.ctx, e.actor, e.stockID, 9)

	var ie *domain.InsufficientStockError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, int64(4), ie.Shortfall)
	assert.Equal(t, int64(0), e.summary(t).ReservedQuantity)
}

func TestReserveFIFO_MotorDejaLaReservaParcial(t *testing.T) {
	e := newEnv(t)
	e.receive(t, "A-1", 3, 0)
	e.receive(t, "A-2", 2, 1)

	var (
		plan       []inventory.Allocation
		reserveErr error
	)
	err := e.store.Run(e.ctx, func(batchRepo repository.StockBatchRepository, _ repository.StockRepository) error {
		plan, reserveErr = e.engine.ReserveFIFO(e.ctx, batchRepo, e.stockID, 9)
		return nil // el llamador decide conservar lo reservado
	})
	require.NoError(t, err)
	assert.ErrorIs(t, reserveErr, domain.ErrInsufficientStock)
	assert.Len(t, plan, 2)
	assert.Equal(t, int64(5), e.summary(t).ReservedQuantity)
	e.assertInvariant(t)
}

func TestReserve_IgnoraLotesVencidos(t *testing.T) {
	e := newEnv(t)
	expiry := day1.AddDate(0, 0, 3)
	e.now = day1
	_, err := e.uc.ReceiveBatch(e.ctx, e.actor, e.stockID, dto.ReceiveBatchRequest{LotNumber: "V-1", Quantity: 5, ExpiryDate: &expiry})
	require.NoError(t, err)
	fresh := e.receive(t, "F-1", 5, 1)

	e.now = day1.AddDate(0, 0, 10)
	res, err := e.uc.Reserve(e.ctx, e.actor, e.stockID, 4)
	require.NoError(t, err)
	require.Len(t, res.Allocations, 1)
	assert.Equal(t, fresh, res.Allocations[0].BatchID)

	s := e.summary(t)
	assert.Equal(t, 1, s.BatchCount, "el lote vencido no cuenta en el resumen")
	assert.Equal(t, int64(5), s.TotalQuantity)
}

func TestRelease_MasDeLoReservado(t *testing.T) {
	e := newEnv(t)
	e.receive(t, "A-1", 5, 0)
	_, err := e.uc.Reserve(e.ctx, e.actor, e.stockID, 2)
	require.NoError(t, err)

	_, err = e.uc.Release(e.ctx, e.actor, e.stockID, 3)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(2), e.summary(t).ReservedQuantity)
}

func TestAdjustBatch(t *testing.T) {
	e := newEnv(t)
	id := e.receive(t, "A-1", 5, 0)

	adjusted, err := e.uc.AdjustBatch(e.ctx, e.actor, id, dto.AdjustBatchRequest{Delta: -2, Reason: "merma"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), adjusted.AvailableQuantity)
	assert.Equal(t, int64(3), adjusted.TotalQuantity)

	_, err = e.uc.AdjustBatch(e.ctx, e.actor, id, dto.AdjustBatchRequest{Delta: -4, Reason: "conteo"})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = e.uc.AdjustBatch(e.ctx, e.actor, id, dto.AdjustBatchRequest{Delta: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	e.assertInvariant(t)
}

func TestIsLow(t *testing.T) {
	e := newEnv(t)
	e.receive(t, "A-1", 5, 0)

	low, err := e.uc.IsLow(e.ctx, e.actor, e.stockID)
	require.NoError(t, err)
	assert.False(t, low)

	_, err = e.uc.Reserve(e.ctx, e.actor, e.stockID, 2)
	require.NoError(t, err)

	low, err = e.uc.IsLow(e.ctx, e.actor, e.stockID)
	require.NoError(t, err)
	assert.True(t, low, "disponible 3 < mínimo 4")
}

func TestStock_OtraOrganizacion(t *testing.T) {
	e := newEnv(t)
	intruso := entity.Actor{UserID: "u-9", OrganizationID: "org-9", Role: entity.RoleOwner}

	_, err := e.uc.GetStock(e.ctx, intruso, e.stockID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListDepartmentStocks(t *testing.T) {
	e := newEnv(t)
	e.receive(t, "A-1", 5, 0)

	stocks, err := e.uc.ListDepartmentStocks(e.ctx, e.actor, "dep-1", dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, e.stockID, stocks[0].ID)
	assert.Equal(t, int64(5), stocks[0].Summary.AvailableQuantity)

	_, err = e.uc.ListDepartmentStocks(e.ctx, e.actor, "dep-x", dto.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
