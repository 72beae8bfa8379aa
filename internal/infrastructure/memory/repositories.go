package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var (
	_ repository.DepartmentRepository = (*DepartmentRepo)(nil)
	_ repository.ProductRepository    = (*ProductRepo)(nil)
	_ repository.StockRepository      = (*StockRepo)(nil)
	_ repository.StockBatchRepository = (*StockBatchRepo)(nil)
	_ repository.TransferRepository   = (*TransferRepo)(nil)
)

// ── Catálogo ──────────────────────────────────────────────────────────────────

// DepartmentRepo implementa repository.DepartmentRepository.
type DepartmentRepo struct{ base }

// GetByID devuelve (nil, nil) si no existe.
func (r *DepartmentRepo) GetByID(_ context.Context, id string) (out *entity.Department, _ error) {
	r.with(func(st *state) {
		if d, ok := st.departments[id]; ok {
			c := *d
			out = &c
		}
	})
	return out, nil
}

// ProductRepo implementa repository.ProductRepository.
type ProductRepo struct{ base }

// GetByID devuelve (nil, nil) si no existe.
func (r *ProductRepo) GetByID(_ context.Context, id string) (out *entity.Product, _ error) {
	r.with(func(st *state) {
		if p, ok := st.products[id]; ok {
			c := *p
			out = &c
		}
	})
	return out, nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

// StockRepo implementa repository.StockRepository.
type StockRepo struct{ base }

func (r *StockRepo) GetByID(_ context.Context, id string) (out *entity.DepartmentStock, _ error) {
	r.with(func(st *state) {
		if s, ok := st.stocks[id]; ok {
			c := *s
			out = &c
		}
	})
	return out, nil
}

func (r *StockRepo) GetByDepartmentAndProduct(_ context.Context, departmentID, productID string) (out *entity.DepartmentStock, _ error) {
	r.with(func(st *state) {
		out = st.stockFor(departmentID, productID)
	})
	return out, nil
}

func (r *StockRepo) Ensure(_ context.Context, stock *entity.DepartmentStock) (out *entity.DepartmentStock, _ error) {
	r.with(func(st *state) {
		if existing := st.stockFor(stock.DepartmentID, stock.ProductID); existing != nil {
			out = existing
			return
		}
		c := *stock
		st.stocks[c.ID] = &c
		cc := c
		out = &cc
	})
	return out, nil
}

func (r *StockRepo) ListByDepartment(_ context.Context, departmentID string, limit, offset int) (out []*entity.DepartmentStock, _ error) {
	r.with(func(st *state) {
		for _, s := range st.stocks {
			if s.DepartmentID == departmentID {
				c := *s
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (st *state) stockFor(departmentID, productID string) *entity.DepartmentStock {
	for _, s := range st.stocks {
		if s.DepartmentID == departmentID && s.ProductID == productID {
			c := *s
			return &c
		}
	}
	return nil
}

// ── Lotes ─────────────────────────────────────────────────────────────────────

// StockBatchRepo implementa repository.StockBatchRepository con las mismas guardas que el SQL.
type StockBatchRepo struct{ base }

func (r *StockBatchRepo) Create(_ context.Context, b *entity.StockBatch) (err error) {
	r.with(func(st *state) {
		for _, existing := range st.batches {
			if existing.StockID == b.StockID && existing.LotNumber == b.LotNumber {
				err = domain.ErrDuplicateLot
				return
			}
		}
		c := *b
		st.batches[c.ID] = &c
	})
	return err
}

func (r *StockBatchRepo) GetByID(_ context.Context, id string) (out *entity.StockBatch, _ error) {
	r.with(func(st *state) {
		if b, ok := st.batches[id]; ok {
			c := *b
			out = &c
		}
	})
	return out, nil
}

func (r *StockBatchRepo) GetByStockAndLot(_ context.Context, stockID, lotNumber string) (out *entity.StockBatch, _ error) {
	r.with(func(st *state) {
		for _, b := range st.batches {
			if b.StockID == stockID && b.LotNumber == lotNumber {
				c := *b
				out = &c
				return
			}
		}
	})
	return out, nil
}

func (r *StockBatchRepo) ListByStock(_ context.Context, stockID string) ([]*entity.StockBatch, error) {
	return r.filter(stockID, func(*entity.StockBatch) bool { return true }), nil
}

func (r *StockBatchRepo) ListAllocatable(_ context.Context, stockID string, now time.Time) ([]*entity.StockBatch, error) {
	return r.filter(stockID, func(b *entity.StockBatch) bool { return b.IsAllocatable(now) }), nil
}

func (r *StockBatchRepo) ListReserved(_ context.Context, stockID string) ([]*entity.StockBatch, error) {
	out := r.filter(stockID, func(b *entity.StockBatch) bool { return b.IsActive && b.ReservedQuantity > 0 })
	r.with(func(st *state) {
		held := map[string]int64{}
		for _, t := range st.transfers {
			for _, it := range t.Items {
				if it.Status != entity.ItemPrepared {
					continue
				}
				for _, tb := range it.Batches {
					held[tb.StockBatchID] += tb.Quantity
				}
			}
		}
		for _, b := range out {
			b.HeldQuantity = held[b.ID]
		}
	})
	return out, nil
}

func (r *StockBatchRepo) Summarize(_ context.Context, stockID string, now time.Time) (entity.StockSummary, error) {
	batches := r.filter(stockID, func(*entity.StockBatch) bool { return true })
	return inventory.Summarize(stockID, batches, now), nil
}

func (r *StockBatchRepo) Reserve(_ context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(batchID, qty, func(b *entity.StockBatch) bool {
		if !b.IsActive || b.Status != entity.BatchAvailable || b.AvailableQuantity < qty {
			return false
		}
		b.AvailableQuantity -= qty
		b.ReservedQuantity += qty
		return true
	}), nil
}

func (r *StockBatchRepo) Release(_ context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(batchID, qty, func(b *entity.StockBatch) bool {
		if b.ReservedQuantity < qty {
			return false
		}
		b.ReservedQuantity -= qty
		b.AvailableQuantity += qty
		return true
	}), nil
}

func (r *StockBatchRepo) Consume(_ context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(batchID, qty, func(b *entity.StockBatch) bool {
		if !b.IsActive || b.ReservedQuantity < qty {
			return false
		}
		b.ReservedQuantity -= qty
		b.TotalQuantity -= qty
		return true
	}), nil
}

func (r *StockBatchRepo) Restore(_ context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(batchID, qty, func(b *entity.StockBatch) bool {
		b.ReservedQuantity += qty
		b.TotalQuantity += qty
		b.IsActive = true
		return true
	}), nil
}

func (r *StockBatchRepo) Credit(_ context.Context, batchID string, qty int64) (bool, error) {
	return r.mutate(batchID, qty, func(b *entity.StockBatch) bool {
		if b.Status != entity.BatchAvailable && b.Status != entity.BatchReserved {
			return false
		}
		b.AvailableQuantity += qty
		b.TotalQuantity += qty
		b.IsActive = true
		return true
	}), nil
}

func (r *StockBatchRepo) Adjust(_ context.Context, batchID string, delta int64) (bool, error) {
	return r.mutate(batchID, 1, func(b *entity.StockBatch) bool {
		if !b.IsActive || b.AvailableQuantity+delta < 0 {
			return false
		}
		b.AvailableQuantity += delta
		b.TotalQuantity += delta
		return true
	}), nil
}

// mutate aplica fn sobre el lote si la guarda se cumple; recalcula estado y desactiva lotes agotados.
func (r *StockBatchRepo) mutate(batchID string, qty int64, fn func(b *entity.StockBatch) bool) (ok bool) {
	if qty <= 0 {
		return false
	}
	r.with(func(st *state) {
		b, found := st.batches[batchID]
		if !found {
			return
		}
		c := *b
		if !fn(&c) {
			return
		}
		c.Status = entity.StatusAfterChange(c.Status, c.AvailableQuantity, c.ReservedQuantity)
		if c.TotalQuantity == 0 {
			c.IsActive = false
		}
		c.UpdatedAt = time.Now()
		st.batches[batchID] = &c
		ok = true
	})
	return ok
}

func (r *StockBatchRepo) filter(stockID string, keep func(*entity.StockBatch) bool) (out []*entity.StockBatch) {
	r.with(func(st *state) {
		for _, b := range st.batches {
			if b.StockID == stockID && keep(b) {
				c := *b
				out = append(out, &c)
			}
		}
	})
	inventory.SortFIFO(out)
	return out
}

// ── Traslados ─────────────────────────────────────────────────────────────────

// TransferRepo implementa repository.TransferRepository.
type TransferRepo struct{ base }

func (r *TransferRepo) Create(_ context.Context, t *entity.Transfer) (err error) {
	r.with(func(st *state) {
		for _, existing := range st.transfers {
			if existing.OrganizationID == t.OrganizationID && existing.Code == t.Code {
				err = domain.ErrDuplicateCode
				return
			}
		}
		st.transfers[t.ID] = cloneTransfer(t, true)
		for _, it := range t.Items {
			st.itemOwner[it.ID] = t.ID
		}
	})
	return err
}

func (r *TransferRepo) ExistsCode(_ context.Context, organizationID, code string) (exists bool, _ error) {
	r.with(func(st *state) {
		for _, t := range st.transfers {
			if t.OrganizationID == organizationID && t.Code == code {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r *TransferRepo) GetByID(_ context.Context, id string) (out *entity.Transfer, _ error) {
	r.with(func(st *state) {
		if t, ok := st.transfers[id]; ok {
			out = cloneTransfer(t, true)
		}
	})
	return out, nil
}

// GetForUpdate dentro de una transacción el mutex del almacén ya serializa el acceso.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *TransferRepo) UpdateItem(_ context.Context, item *entity.TransferItem, from entity.ItemStatus) (ok bool, err error) {
	r.with(func(st *state) {
		stored := st.item(item.ID)
		if stored == nil {
			err = domain.ErrNotFound
			return
		}
		if stored.Status != from {
			return
		}
		batches := stored.Batches
		*stored = *item
		stored.Batches = batches
		ok = true
	})
	return ok, err
}

func (r *TransferRepo) UpdateHeader(_ context.Context, t *entity.Transfer) (err error) {
	r.with(func(st *state) {
		stored, found := st.transfers[t.ID]
		if !found {
			err = domain.ErrNotFound
			return
		}
		items := stored.Items
		*stored = *t
		stored.Items = items
	})
	return err
}

func (r *TransferRepo) AddBatch(_ context.Context, b *entity.TransferBatch) (err error) {
	r.with(func(st *state) {
		stored := st.item(b.TransferItemID)
		if stored == nil {
			err = domain.ErrNotFound
			return
		}
		c := *b
		stored.Batches = append(stored.Batches, &c)
	})
	return err
}

func (r *TransferRepo) SetBatchReceived(_ context.Context, transferBatchID string, received int64) (err error) {
	r.with(func(st *state) {
		for _, t := range st.transfers {
			for _, it := range t.Items {
				for _, b := range it.Batches {
					if b.ID == transferBatchID {
						v := received
						b.ReceivedQuantity = &v
						b.UpdatedAt = time.Now()
						return
					}
				}
			}
		}
		err = domain.ErrNotFound
	})
	return err
}

func (r *TransferRepo) AppendHistory(_ context.Context, h *entity.TransferHistory) error {
	c := *h
	r.with(func(st *state) {
		st.history = append(st.history, &c)
	})
	return nil
}

func (r *TransferRepo) ListHistory(_ context.Context, transferID string) (out []*entity.TransferHistory, _ error) {
	r.with(func(st *state) {
		for _, h := range st.history {
			if h.TransferID == transferID {
				c := *h
				out = append(out, &c)
			}
		}
	})
	return out, nil
}

func (r *TransferRepo) List(_ context.Context, f repository.TransferFilter) (out []*entity.Transfer, total int, _ error) {
	r.with(func(st *state) {
		for _, t := range st.transfers {
			if t.OrganizationID != f.OrganizationID ||
				(f.RequestingDepartment != "" && t.RequestingDepartment != f.RequestingDepartment) ||
				(f.SupplyingDepartment != "" && t.SupplyingDepartment != f.SupplyingDepartment) ||
				(f.Status != "" && t.Status != f.Status) ||
				(f.Priority != "" && t.Priority != f.Priority) {
				continue
			}
			out = append(out, cloneTransfer(t, false))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].Code < out[j].Code
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (st *state) item(itemID string) *entity.TransferItem {
	t, ok := st.transfers[st.itemOwner[itemID]]
	if !ok {
		return nil
	}
	for _, it := range t.Items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
