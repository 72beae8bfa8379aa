package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var _ repository.StockBatchRepository = (*StockBatchRepo)(nil)

// StockBatchRepo libro de lotes sobre PostgreSQL. Las mutaciones de cantidad son un único
// UPDATE condicional; el CHECK de la tabla respalda el invariante total = disponible + reservado.
type StockBatchRepo struct {
	q Querier
}

// NewStockBatchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockBatchRepository(q Querier) *StockBatchRepo {
	return &StockBatchRepo{q: q}
}

const batchColumns = `id, stock_id, lot_number, expiry_date, manufacture_date, supplier, cost_price, selling_price,
	total_quantity, available_quantity, reserved_quantity, incoming_quantity, status, is_active, location,
	received_at, created_at, updated_at`

func scanBatch(row scanner) (*entity.StockBatch, error) {
	var b entity.StockBatch
	var status string
	err := row.Scan(
		&b.ID, &b.StockID, &b.LotNumber, &b.ExpiryDate, &b.ManufactureDate, &b.Supplier, &b.CostPrice, &b.SellingPrice,
		&b.TotalQuantity, &b.AvailableQuantity, &b.ReservedQuantity, &b.IncomingQuantity, &status, &b.IsActive, &b.Location,
		&b.ReceivedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = entity.BatchStatus(status)
	return &b, nil
}

// Create persiste un lote nuevo.
func (r *StockBatchRepo) Create(ctx context.Context, b *entity.StockBatch) error {
	query := `
		INSERT INTO stock_batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.StockID, b.LotNumber, b.ExpiryDate, b.ManufactureDate, b.Supplier, b.CostPrice, b.SellingPrice,
		b.TotalQuantity, b.AvailableQuantity, b.ReservedQuantity, b.IncomingQuantity, string(b.Status), b.IsActive, b.Location,
		b.ReceivedAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateLot
		}
		return fmt.Errorf("insert stock batch: %w", err)
	}
	return nil
}

// GetByID obtiene un lote por ID.
func (r *StockBatchRepo) GetByID(ctx context.Context, id string) (*entity.StockBatch, error) {
	if !validIDs(id) {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE id = $1`, id)
}

// GetByStockAndLot obtiene el lote con ese número dentro del stock.
func (r *StockBatchRepo) GetByStockAndLot(ctx context.Context, stockID, lotNumber string) (*entity.StockBatch, error) {
	if !validIDs(stockID) {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE stock_id = $1 AND lot_number = $2`, stockID, lotNumber)
}

// ListByStock todos los lotes del stock en orden FIFO.
func (r *StockBatchRepo) ListByStock(ctx context.Context, stockID string) ([]*entity.StockBatch, error) {
	return r.list(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE stock_id = $1 ORDER BY received_at, id`, stockID)
}

// ListAllocatable lotes elegibles en orden FIFO, bloqueados hasta el fin de la transacción.
func (r *StockBatchRepo) ListAllocatable(ctx context.Context, stockID string, now time.Time) ([]*entity.StockBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM stock_batches
		WHERE stock_id = $1 AND is_active AND status = 'AVAILABLE' AND available_quantity > 0
		  AND (expiry_date IS NULL OR expiry_date >= $2)
		ORDER BY received_at, id
		FOR UPDATE`
	return r.list(ctx, query, stockID, now)
}

// ListReserved lotes activos con reservado > 0 en orden FIFO, bloqueados. HeldQuantity se suma en
// una segunda sentencia, ya con los lotes bloqueados, para ver lo que confirmó quien tenía el lock.
func (r *StockBatchRepo) ListReserved(ctx context.Context, stockID string) ([]*entity.StockBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM stock_batches
		WHERE stock_id = $1 AND is_active AND reserved_quantity > 0
		ORDER BY received_at, id
		FOR UPDATE`
	batches, err := r.list(ctx, query, stockID)
	if err != nil || len(batches) == 0 {
		return batches, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT tb.stock_batch_id, SUM(tb.quantity)::bigint
		FROM transfer_batches tb
		JOIN transfer_items ti ON ti.id = tb.transfer_item_id
		JOIN stock_batches sb ON sb.id = tb.stock_batch_id
		WHERE sb.stock_id = $1 AND ti.status = 'PREPARED'
		GROUP BY tb.stock_batch_id`, stockID)
	if err != nil {
		return nil, fmt.Errorf("held quantities: %w", err)
	}
	defer rows.Close()
	held := make(map[string]int64, len(batches))
	for rows.Next() {
		var id string
		var qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scan held quantity: %w", err)
		}
		held[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, b := range batches {
		b.HeldQuantity = held[b.ID]
	}
	return batches, nil
}

// Summarize suma cantidades de lotes activos y no vencidos.
func (r *StockBatchRepo) Summarize(ctx context.Context, stockID string, now time.Time) (entity.StockSummary, error) {
	query := `
		SELECT COALESCE(SUM(total_quantity), 0)::bigint,
		       COALESCE(SUM(available_quantity), 0)::bigint,
		       COALESCE(SUM(reserved_quantity), 0)::bigint,
		       COALESCE(SUM(incoming_quantity), 0)::bigint,
		       COUNT(*)
		FROM stock_batches
		WHERE stock_id = $1 AND is_active AND status <> 'EXPIRED'
		  AND (expiry_date IS NULL OR expiry_date >= $2)`
	s := entity.StockSummary{StockID: stockID}
	var count int64
	err := r.q.QueryRow(ctx, query, stockID, now).Scan(
		&s.TotalQuantity, &s.AvailableQuantity, &s.ReservedQuantity, &s.IncomingQuantity, &count,
	)
	if err != nil {
		return entity.StockSummary{}, fmt.Errorf("summarize stock: %w", err)
	}
	s.BatchCount = int(count)
	return s, nil
}

// batchDelta deltas SQL sobre cada columna ("+ $2", "- $2" o vacío) más la guarda del WHERE.
type batchDelta struct {
	available  string
	reserved   string
	total      string
	guard      string
	reactivate bool
}

func (r *StockBatchRepo) Reserve(ctx context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(ctx, batchID, qty, batchDelta{
		available: "- $2", reserved: "+ $2",
		guard: "is_active AND status = 'AVAILABLE' AND available_quantity >= $2",
	})
}

func (r *StockBatchRepo) Release(ctx context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(ctx, batchID, qty, batchDelta{
		available: "+ $2", reserved: "- $2",
		guard: "reserved_quantity >= $2",
	})
}

func (r *StockBatchRepo) Consume(ctx context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(ctx, batchID, qty, batchDelta{
		reserved: "- $2", total: "- $2",
		guard: "is_active AND reserved_quantity >= $2",
	})
}

func (r *StockBatchRepo) Restore(ctx context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(ctx, batchID, qty, batchDelta{
		reserved: "+ $2", total: "+ $2",
		reactivate: true,
	})
}

func (r *StockBatchRepo) Credit(ctx context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(ctx, batchID, qty, batchDelta{
		available: "+ $2", total: "+ $2",
		guard:      "status IN ('AVAILABLE', 'RESERVED')",
		reactivate: true,
	})
}

func (r *StockBatchRepo) Adjust(ctx context.Context, batchID string, delta int64) (bool, error) {
	if delta == 0 {
		return false, nil
	}
	return r.exec(ctx, batchID, delta, batchDelta{
		available: "+ $2", total: "+ $2",
		guard: "is_active AND available_quantity + $2 >= 0",
	})
}

func (r *StockBatchRepo) mutate(ctx context.Context, batchID string, qty int64, d batchDelta) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	return r.exec(ctx, batchID, qty, d)
}

// exec UPDATE condicional de una fila. El estado se recalcula igual que entity.StatusAfterChange
// y un lote con total 0 queda inactivo.
func (r *StockBatchRepo) exec(ctx context.Context, batchID string, arg int64, d batchDelta) (bool, error) {
	active := "is_active"
	if d.reactivate {
		active = "TRUE"
	}
	guard := "TRUE"
	if d.guard != "" {
		guard = d.guard
	}
	query := `
		UPDATE stock_batches SET
			available_quantity = available_quantity ` + d.available + `,
			reserved_quantity = reserved_quantity ` + d.reserved + `,
			total_quantity = total_quantity ` + d.total + `,
			status = CASE
				WHEN status NOT IN ('AVAILABLE', 'RESERVED') THEN status
				WHEN available_quantity ` + d.available + ` > 0 THEN 'AVAILABLE'
				WHEN reserved_quantity ` + d.reserved + ` > 0 THEN 'RESERVED'
				ELSE status
			END,
			is_active = CASE WHEN total_quantity ` + d.total + ` = 0 THEN FALSE ELSE ` + active + ` END,
			updated_at = NOW()
		WHERE id = $1 AND ` + guard
	tag, err := r.q.Exec(ctx, query, batchID, arg)
	if err != nil {
		if isCheckViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("update stock batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *StockBatchRepo) getOne(ctx context.Context, query string, args ...any) (*entity.StockBatch, error) {
	b, err := scanBatch(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock batch: %w", err)
	}
	return b, nil
}

func (r *StockBatchRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockBatch, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock batches: %w", err)
	}
	defer rows.Close()
	var out []*entity.StockBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
