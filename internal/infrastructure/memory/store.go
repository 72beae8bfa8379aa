// Package memory implementa los puertos de persistencia en memoria. Se usa en pruebas y en
// demostraciones locales; respeta las mismas guardas condicionales que el adaptador Postgres.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/traslados-api/internal/application/ports"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// Store almacén en memoria. Las transacciones se serializan con un mutex tomado durante toda la
// función y se revierten restaurando la copia tomada al inicio.
type Store struct {
	mu    sync.Mutex
	state *state

	auditMu  sync.Mutex
	audit    []ports.AuditEntry
	auditErr error
}

type state struct {
	departments map[string]*entity.Department
	products    map[string]*entity.Product
	stocks      map[string]*entity.DepartmentStock
	batches     map[string]*entity.StockBatch
	transfers   map[string]*entity.Transfer
	itemOwner   map[string]string // item → traslado
	history     []*entity.TransferHistory
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{state: &state{
		departments: map[string]*entity.Department{},
		products:    map[string]*entity.Product{},
		stocks:      map[string]*entity.DepartmentStock{},
		batches:     map[string]*entity.StockBatch{},
		transfers:   map[string]*entity.Transfer{},
		itemOwner:   map[string]string{},
	}}
}

// AddDepartment registra un departamento en el catálogo.
func (s *Store) AddDepartment(d entity.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.departments[d.ID] = &d
}

// AddProduct registra un producto en el catálogo.
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = &p
}

// Departments repositorio fuera de transacción.
func (s *Store) Departments() repository.DepartmentRepository { return &DepartmentRepo{base{s: s}} }

// Products repositorio fuera de transacción.
func (s *Store) Products() repository.ProductRepository { return &ProductRepo{base{s: s}} }

// Stocks repositorio fuera de transacción.
func (s *Store) Stocks() repository.StockRepository { return &StockRepo{base{s: s}} }

// Batches repositorio fuera de transacción.
func (s *Store) Batches() repository.StockBatchRepository { return &StockBatchRepo{base{s: s}} }

// Transfers repositorio fuera de transacción.
func (s *Store) Transfers() repository.TransferRepository { return &TransferRepo{base{s: s}} }

// Run implementa inventory.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(
	batchRepo repository.StockBatchRepository,
	stockRepo repository.StockRepository,
) error) error {
	return s.tx(ctx, func(b base) error {
		return fn(&StockBatchRepo{b}, &StockRepo{b})
	})
}

// RunTransfer implementa transfer.TxRunner.
func (s *Store) RunTransfer(ctx context.Context, fn func(
	batchRepo repository.StockBatchRepository,
	stockRepo repository.StockRepository,
	transferRepo repository.TransferRepository,
) error) error {
	return s.tx(ctx, func(b base) error {
		return fn(&StockBatchRepo{b}, &StockRepo{b}, &TransferRepo{b})
	})
}

func (s *Store) tx(ctx context.Context, fn func(b base) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(base{s: s, inTx: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Record implementa ports.AuditLogger.
func (s *Store) Record(_ context.Context, entry ports.AuditEntry) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audit = append(s.audit, entry)
	return nil
}

// FailAudit hace que Record devuelva err (nil restablece).
func (s *Store) FailAudit(err error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.auditErr = err
}

// AuditEntries copia de las entradas de auditoría registradas.
func (s *Store) AuditEntries() []ports.AuditEntry {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return append([]ports.AuditEntry(nil), s.audit...)
}

// base acceso compartido al estado. Dentro de una transacción el mutex ya está tomado.
type base struct {
	s    *Store
	inTx bool
}

func (b base) with(fn func(st *state)) {
	if !b.inTx {
		b.s.mu.Lock()
		defer b.s.mu.Unlock()
	}
	fn(b.s.state)
}

func (st *state) clone() *state {
	c := &state{
		departments: make(map[string]*entity.Department, len(st.departments)),
		products:    make(map[string]*entity.Product, len(st.products)),
		stocks:      make(map[string]*entity.DepartmentStock, len(st.stocks)),
		batches:     make(map[string]*entity.StockBatch, len(st.batches)),
		transfers:   make(map[string]*entity.Transfer, len(st.transfers)),
		itemOwner:   make(map[string]string, len(st.itemOwner)),
		history:     append([]*entity.TransferHistory(nil), st.history...),
	}
	for k, v := range st.departments {
		d := *v
		c.departments[k] = &d
	}
	for k, v := range st.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range st.stocks {
		s := *v
		c.stocks[k] = &s
	}
	for k, v := range st.batches {
		b := *v
		c.batches[k] = &b
	}
	for k, v := range st.transfers {
		c.transfers[k] = cloneTransfer(v, true)
	}
	for k, v := range st.itemOwner {
		c.itemOwner[k] = v
	}
	return c
}

// cloneTransfer copia profunda del agregado; los punteros a valores se comparten porque nunca se
// escriben a través de ellos.
func cloneTransfer(t *entity.Transfer, withBatches bool) *entity.Transfer {
	c := *t
	c.Items = make([]*entity.TransferItem, 0, len(t.Items))
	for _, it := range t.Items {
		ci := *it
		ci.Batches = nil
		if withBatches {
			ci.Batches = make([]*entity.TransferBatch, 0, len(it.Batches))
			for _, b := range it.Batches {
				cb := *b
				ci.Batches = append(ci.Batches, &cb)
			}
		}
		c.Items = append(c.Items, &ci)
	}
	return &c
}
