package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

// TransferRepo persistencia del agregado Transfer (cabecera, ítems, lotes escogidos e historial).
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

const transferColumns = `id, organization_id, code, title, requesting_department_id, supplying_department_id,
	status, priority, reason, notes, requested_by_id, requested_by_name, requested_by_role, requested_at,
	approved_at, prepared_at, delivered_at, cancelled_at, cancel_reason, created_at, updated_at`

const itemColumns = `id, transfer_id, product_id, requested_quantity, approved_quantity, prepared_quantity,
	received_quantity, status, notes, cancel_reason, approved_at, prepared_at, delivered_at, cancelled_at,
	created_at, updated_at`

func scanTransfer(row scanner, extra ...any) (*entity.Transfer, error) {
	var t entity.Transfer
	var status, priority string
	dest := []any{
		&t.ID, &t.OrganizationID, &t.Code, &t.Title, &t.RequestingDepartment, &t.SupplyingDepartment,
		&status, &priority, &t.Reason, &t.Notes, &t.RequestedBy.UserID, &t.RequestedBy.Name, &t.RequestedBy.Role, &t.RequestedAt,
		&t.ApprovedAt, &t.PreparedAt, &t.DeliveredAt, &t.CancelledAt, &t.CancelReason, &t.CreatedAt, &t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	t.Status = entity.TransferStatus(status)
	t.Priority = entity.Priority(priority)
	return &t, nil
}

func scanItem(row scanner) (*entity.TransferItem, error) {
	var it entity.TransferItem
	var status string
	err := row.Scan(
		&it.ID, &it.TransferID, &it.ProductID, &it.RequestedQuantity, &it.ApprovedQuantity, &it.PreparedQuantity,
		&it.ReceivedQuantity, &status, &it.Notes, &it.CancelReason, &it.ApprovedAt, &it.PreparedAt, &it.DeliveredAt, &it.CancelledAt,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Status = entity.ItemStatus(status)
	return &it, nil
}

// Create inserta cabecera e ítems (position conserva el orden de la solicitud).
func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.OrganizationID, t.Code, t.Title, t.RequestingDepartment, t.SupplyingDepartment,
		string(t.Status), string(t.Priority), t.Reason, t.Notes, t.RequestedBy.UserID, t.RequestedBy.Name, t.RequestedBy.Role, t.RequestedAt,
		t.ApprovedAt, t.PreparedAt, t.DeliveredAt, t.CancelledAt, t.CancelReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && constraintName(err) == "transfers_organization_id_code_key" {
			return domain.ErrDuplicateCode
		}
		return fmt.Errorf("insert transfer: %w", err)
	}

	itemQuery := `
		INSERT INTO transfer_items (` + itemColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	for i, it := range t.Items {
		_, err := r.q.Exec(ctx, itemQuery,
			it.ID, t.ID, it.ProductID, it.RequestedQuantity, it.ApprovedQuantity, it.PreparedQuantity,
			it.ReceivedQuantity, string(it.Status), it.Notes, it.CancelReason, it.ApprovedAt, it.PreparedAt, it.DeliveredAt, it.CancelledAt,
			it.CreatedAt, it.UpdatedAt, i,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Invalid("items", "producto repetido "+it.ProductID)
			}
			return fmt.Errorf("insert transfer item: %w", err)
		}
	}
	return nil
}

// ExistsCode indica si el código ya está usado en la organización.
func (r *TransferRepo) ExistsCode(ctx context.Context, organizationID, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transfers WHERE organization_id = $1 AND code = $2)`,
		organizationID, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists transfer code: %w", err)
	}
	return exists, nil
}

// GetByID agregado completo o (nil, nil).
func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate bloquea la cabecera (SELECT ... FOR UPDATE); las operaciones concurrentes sobre el
// mismo traslado quedan en cola hasta el commit.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, id, true)
}

func (r *TransferRepo) get(ctx context.Context, id string, lock bool) (*entity.Transfer, error) {
	if !validIDs(id) {
		return nil, nil
	}
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	t, err := scanTransfer(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.Transfer{t}); err != nil {
		return nil, err
	}
	if err := r.loadBatches(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateItem solo aplica si el estado almacenado sigue siendo from.
func (r *TransferRepo) UpdateItem(ctx context.Context, it *entity.TransferItem, from entity.ItemStatus) (bool, error) {
	query := `
		UPDATE transfer_items SET
			approved_quantity = $3, prepared_quantity = $4, received_quantity = $5, status = $6,
			notes = $7, cancel_reason = $8, approved_at = $9, prepared_at = $10, delivered_at = $11,
			cancelled_at = $12, updated_at = $13
		WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(ctx, query,
		it.ID, string(from),
		it.ApprovedQuantity, it.PreparedQuantity, it.ReceivedQuantity, string(it.Status),
		it.Notes, it.CancelReason, it.ApprovedAt, it.PreparedAt, it.DeliveredAt,
		it.CancelledAt, it.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update transfer item: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transfer_items WHERE id = $1)`, it.ID).Scan(&exists); err != nil {
		return false, fmt.Errorf("update transfer item: %w", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// UpdateHeader persiste estado, marcas de tiempo y motivo de cancelación de la cabecera.
func (r *TransferRepo) UpdateHeader(ctx context.Context, t *entity.Transfer) error {
	query := `
		UPDATE transfers SET
			status = $2, approved_at = $3, prepared_at = $4, delivered_at = $5, cancelled_at = $6,
			cancel_reason = $7, notes = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		t.ID, string(t.Status), t.ApprovedAt, t.PreparedAt, t.DeliveredAt, t.CancelledAt,
		t.CancelReason, t.Notes, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddBatch registra un lote escogido para el ítem.
func (r *TransferRepo) AddBatch(ctx context.Context, b *entity.TransferBatch) error {
	query := `
		INSERT INTO transfer_batches (id, transfer_item_id, stock_batch_id, lot_number, quantity, received_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.TransferItemID, b.StockBatchID, b.LotNumber, b.Quantity, b.ReceivedQuantity, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer batch: %w", err)
	}
	return nil
}

// SetBatchReceived anota lo recibido de un lote escogido.
func (r *TransferRepo) SetBatchReceived(ctx context.Context, transferBatchID string, received int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE transfer_batches SET received_quantity = $2, updated_at = NOW() WHERE id = $1`,
		transferBatchID, received,
	)
	if err != nil {
		return fmt.Errorf("update transfer batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendHistory inserta una fila; seq (BIGSERIAL) fija el orden de lectura.
func (r *TransferRepo) AppendHistory(ctx context.Context, h *entity.TransferHistory) error {
	query := `
		INSERT INTO transfer_history (id, transfer_id, item_id, action, from_status, to_status,
			actor_id, actor_name, actor_role, notes, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		h.ID, h.TransferID, h.ItemID, h.Action, h.FromStatus, h.ToStatus,
		h.Actor.UserID, h.Actor.Name, h.Actor.Role, h.Notes, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer history: %w", err)
	}
	return nil
}

// ListHistory historial del más antiguo al más reciente.
func (r *TransferRepo) ListHistory(ctx context.Context, transferID string) ([]*entity.TransferHistory, error) {
	query := `
		SELECT id, transfer_id, item_id, action, from_status, to_status, actor_id, actor_name, actor_role, notes, created_at
		FROM transfer_history WHERE transfer_id = $1 ORDER BY seq`
	rows, err := r.q.Query(ctx, query, transferID)
	if err != nil {
		return nil, fmt.Errorf("list transfer history: %w", err)
	}
	defer rows.Close()
	var out []*entity.TransferHistory
	for rows.Next() {
		var h entity.TransferHistory
		var itemID *string
		if err := rows.Scan(
			&h.ID, &h.TransferID, &itemID, &h.Action, &h.FromStatus, &h.ToStatus,
			&h.Actor.UserID, &h.Actor.Name, &h.Actor.Role, &h.Notes, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer history: %w", err)
		}
		if itemID != nil {
			h.ItemID = *itemID
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// List cabeceras filtradas con sus ítems (sin lotes), más recientes primero, y el total del filtro.
func (r *TransferRepo) List(ctx context.Context, f repository.TransferFilter) ([]*entity.Transfer, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{f.OrganizationID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.RequestingDepartment != "" {
		add("requesting_department_id = $%d", f.RequestingDepartment)
	}
	if f.SupplyingDepartment != "" {
		add("supplying_department_id = $%d", f.SupplyingDepartment)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER ()
		FROM transfers
		WHERE %s
		ORDER BY requested_at DESC, code
		LIMIT $%d OFFSET $%d`, transferColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	var (
		out   []*entity.Transfer
		total int64
	)
	for rows.Next() {
		t, err := scanTransfer(rows, &total)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	if len(out) == 0 && f.Offset > 0 {
		// página vacía: el total sale de un conteo aparte
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM transfers WHERE %s`, strings.Join(where, " AND "))
		if err := r.q.QueryRow(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count transfers: %w", err)
		}
	}
	if err := r.loadItems(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

// loadItems carga los ítems de varios traslados en una sola consulta, en orden de creación.
func (r *TransferRepo) loadItems(ctx context.Context, transfers []*entity.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Transfer, len(transfers))
	ids := make([]string, 0, len(transfers))
	for _, t := range transfers {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	query := `SELECT ` + itemColumns + ` FROM transfer_items
		WHERE transfer_id::text = ANY($1) ORDER BY transfer_id, position`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list transfer items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return fmt.Errorf("scan transfer item: %w", err)
		}
		if t := byID[it.TransferID]; t != nil {
			t.Items = append(t.Items, it)
		}
	}
	return rows.Err()
}

func (r *TransferRepo) loadBatches(ctx context.Context, t *entity.Transfer) error {
	query := `
		SELECT tb.id, tb.transfer_item_id, tb.stock_batch_id, tb.lot_number, tb.quantity, tb.received_quantity,
		       tb.created_at, tb.updated_at
		FROM transfer_batches tb
		JOIN transfer_items ti ON ti.id = tb.transfer_item_id
		WHERE ti.transfer_id = $1
		ORDER BY tb.created_at, tb.id`
	rows, err := r.q.Query(ctx, query, t.ID)
	if err != nil {
		return fmt.Errorf("list transfer batches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b entity.TransferBatch
		if err := rows.Scan(
			&b.ID, &b.TransferItemID, &b.StockBatchID, &b.LotNumber, &b.Quantity, &b.ReceivedQuantity,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scan transfer batch: %w", err)
		}
		if it := t.Item(b.TransferItemID); it != nil {
			it.Batches = append(it.Batches, &b)
		}
	}
	return rows.Err()
}
