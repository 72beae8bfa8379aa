package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
)

var (
	day1 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
	now  = day1.AddDate(0, 1, 0)
)

func batch(id string, received time.Time, available int64) *entity.StockBatch {
	return &entity.StockBatch{
		ID:                id,
		StockID:           "stock-1",
		LotNumber:         "L-" + id,
		TotalQuantity:     available,
		AvailableQuantity: available,
		Status:            entity.BatchAvailable,
		IsActive:          true,
		ReceivedAt:        received,
	}
}

func TestPlanFIFO_ConsumeLoMasAntiguoPrimero(t *testing.T) {
	// Orden invertido a propósito: el plan debe ordenar por fecha de recepción.
	batches := []*entity.StockBatch{batch("b2", day2, 5), batch("b1", day1, 5)}

	plan, shortfall := inventory.PlanFIFO(batches, 7, now)

	assert.Zero(t, shortfall)
	require.Len(t, plan, 2)
	assert.Equal(t, inventory.Allocation{BatchID: "b1", Quantity: 5}, plan[0])
	assert.Equal(t, inventory.Allocation{BatchID: "b2", Quantity: 2}, plan[1])
}

func TestPlanFIFO_Faltante(t *testing.T) {
	batches := []*entity.StockBatch{batch("b1", day1, 3), batch("b2", day2, 2)}

	plan, shortfall := inventory.PlanFIFO(batches, 9, now)

	assert.Equal(t, int64(4), shortfall)
	assert.Len(t, plan, 2)
}

func TestPlanFIFO_IgnoraLotesNoElegibles(t *testing.T) {
	expired := batch("vencido", day1, 10)
	past := day1.AddDate(0, 0, 2)
	expired.ExpiryDate = &past

	inactive := batch("inactivo", day1, 10)
	inactive.IsActive = false

	quarantine := batch("cuarentena", day1, 10)
	quarantine.Status = entity.BatchQuarantine

	ok := batch("ok", day2, 10)

	plan, shortfall := inventory.PlanFIFO([]*entity.StockBatch{expired, inactive, quarantine, ok}, 4, now)

	assert.Zero(t, shortfall)
	require.Len(t, plan, 1)
	assert.Equal(t, "ok", plan[0].BatchID)
}

func TestPlanRelease_DesdeLoMasAntiguo(t *testing.T) {
	b1 := batch("b1", day1, 0)
	b1.ReservedQuantity, b1.TotalQuantity, b1.Status = 5, 5, entity.BatchReserved
	b2 := batch("b2", day2, 3)
	b2.ReservedQuantity, b2.TotalQuantity = 2, 5

	plan, shortfall := inventory.PlanRelease([]*entity.StockBatch{b2, b1}, 6)

	assert.Zero(t, shortfall)
	require.Len(t, plan, 2)
	assert.Equal(t, inventory.Allocation{BatchID: "b1", Quantity: 5}, plan[0])
	assert.Equal(t, inventory.Allocation{BatchID: "b2", Quantity: 1}, plan[1])
}

func TestPlanRelease_OmiteLoRetenidoPorTraslados(t *testing.T) {
	b1 := batch("b1", day1, 0)
	b1.ReservedQuantity, b1.TotalQuantity, b1.Status = 5, 5, entity.BatchReserved
	b1.HeldQuantity = 5
	b2 := batch("b2", day2, 0)
	b2.ReservedQuantity, b2.TotalQuantity, b2.Status = 4, 4, entity.BatchReserved
	b2.HeldQuantity = 1

	plan, shortfall := inventory.PlanRelease([]*entity.StockBatch{b1, b2}, 5)

	assert.Equal(t, int64(2), shortfall)
	require.Len(t, plan, 1)
	assert.Equal(t, inventory.Allocation{BatchID: "b2", Quantity: 3}, plan[0])
}

func TestValidatePicks(t *testing.T) {
	b1 := batch("b1", day1, 6)
	b2 := batch("b2", day2, 4)
	byID := map[string]*entity.StockBatch{"b1": b1, "b2": b2}

	t.Run("suma exacta", func(t *testing.T) {
		err := inventory.ValidatePicks([]inventory.Pick{{"b1", 6}, {"b2", 4}}, 10, byID, now)
		assert.NoError(t, err)
	})

	t.Run("suma menor a lo aprobado", func(t *testing.T) {
		err := inventory.ValidatePicks([]inventory.Pick{{"b1", 6}, {"b2", 2}}, 10, byID, now)
		assert.ErrorIs(t, err, domain.ErrBatchOverAllocation)

		var oe *domain.BatchOverAllocationError
		require.True(t, errors.As(err, &oe))
		assert.Equal(t, int64(8), oe.Requested)
		assert.Equal(t, int64(10), oe.Available)
	})

	t.Run("selección excede el lote", func(t *testing.T) {
		err := inventory.ValidatePicks([]inventory.Pick{{"b1", 3}, {"b2", 7}}, 10, byID, now)

		var oe *domain.BatchOverAllocationError
		require.True(t, errors.As(err, &oe))
		assert.Equal(t, "b2", oe.BatchID)
		assert.Equal(t, int64(4), oe.Available)
	})

	t.Run("cantidad no positiva", func(t *testing.T) {
		err := inventory.ValidatePicks([]inventory.Pick{{"b1", 0}}, 0, byID, now)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("lote repetido", func(t *testing.T) {
		err := inventory.ValidatePicks([]inventory.Pick{{"b1", 2}, {"b1", 2}}, 4, byID, now)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("lote inexistente", func(t *testing.T) {
		err := inventory.ValidatePicks([]inventory.Pick{{"otro", 10}}, 10, byID, now)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSummarize_SoloLotesActivosNoVencidos(t *testing.T) {
	active := batch("a", day1, 4)
	active.ReservedQuantity, active.TotalQuantity = 2, 6
	active.IncomingQuantity = 3

	expired := batch("v", day1, 10)
	expired.Status = entity.BatchExpired

	inactive := batch("i", day1, 10)
	inactive.IsActive = false

	s := inventory.Summarize("stock-1", []*entity.StockBatch{active, expired, inactive}, now)

	assert.Equal(t, entity.StockSummary{
		StockID:           "stock-1",
		TotalQuantity:     6,
		AvailableQuantity: 4,
		ReservedQuantity:  2,
		IncomingQuantity:  3,
		BatchCount:        1,
	}, s)
}
