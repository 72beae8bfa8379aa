package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// QueryUseCase modelos de lectura de traslados con nombres de producto y departamento resueltos.
type QueryUseCase struct {
	transferRepo   repository.TransferRepository
	departmentRepo repository.DepartmentRepository
	productRepo    repository.ProductRepository
	batchRepo      repository.StockBatchRepository
}

// NewQueryUseCase construye el caso de uso.
func NewQueryUseCase(
	transferRepo repository.TransferRepository,
	departmentRepo repository.DepartmentRepository,
	productRepo repository.ProductRepository,
	batchRepo repository.StockBatchRepository,
) *QueryUseCase {
	return &QueryUseCase{
		transferRepo:   transferRepo,
		departmentRepo: departmentRepo,
		productRepo:    productRepo,
		batchRepo:      batchRepo,
	}
}

// GetTransferWithDetails traslado completo: ítems, lotes escogidos y nombres resueltos.
func (uc *QueryUseCase) GetTransferWithDetails(ctx context.Context, actor entity.Actor, transferID string) (*dto.TransferResponse, error) {
	t, err := uc.load(ctx, actor, transferID)
	if err != nil {
		return nil, err
	}
	return uc.Present(ctx, t)
}

// Present arma el detalle de un agregado ya cargado (por ejemplo, el devuelto por una operación de flujo).
func (uc *QueryUseCase) Present(ctx context.Context, t *entity.Transfer) (*dto.TransferResponse, error) {
	r := newResolver(uc)
	resp, err := r.header(ctx, t)
	if err != nil {
		return nil, err
	}
	resp.Items = make([]dto.TransferItemDTO, 0, len(t.Items))
	for _, it := range t.Items {
		product, err := r.product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		item := dto.TransferItemDTO{
			ID:                it.ID,
			Product:           product,
			RequestedQuantity: it.RequestedQuantity,
			ApprovedQuantity:  it.ApprovedQuantity,
			PreparedQuantity:  it.PreparedQuantity,
			ReceivedQuantity:  it.ReceivedQuantity,
			Status:            string(it.Status),
			Notes:             it.Notes,
			CancelReason:      it.CancelReason,
			ApprovedAt:        it.ApprovedAt,
			PreparedAt:        it.PreparedAt,
			DeliveredAt:       it.DeliveredAt,
			CancelledAt:       it.CancelledAt,
			Batches:           make([]dto.TransferBatchDTO, 0, len(it.Batches)),
		}
		for _, tb := range it.Batches {
			b := dto.TransferBatchDTO{
				ID:               tb.ID,
				StockBatchID:     tb.StockBatchID,
				LotNumber:        tb.LotNumber,
				Quantity:         tb.Quantity,
				ReceivedQuantity: tb.ReceivedQuantity,
			}
			if sb, err := uc.batchRepo.GetByID(ctx, tb.StockBatchID); err == nil && sb != nil {
				b.ExpiryDate = sb.ExpiryDate
			}
			item.Batches = append(item.Batches, b)
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

// ListOutgoing traslados que el departamento debe surtir (es el proveedor).
func (uc *QueryUseCase) ListOutgoing(ctx context.Context, actor entity.Actor, departmentID string, req dto.TransferListRequest) (*dto.TransferListResponse, error) {
	return uc.list(ctx, actor, departmentID, req, false)
}

// ListIncoming traslados que el departamento solicitó (es el receptor).
func (uc *QueryUseCase) ListIncoming(ctx context.Context, actor entity.Actor, departmentID string, req dto.TransferListRequest) (*dto.TransferListResponse, error) {
	return uc.list(ctx, actor, departmentID, req, true)
}

// GetTransferHistory historial append-only del traslado, del más antiguo al más reciente.
func (uc *QueryUseCase) GetTransferHistory(ctx context.Context, actor entity.Actor, transferID string) ([]dto.TransferHistoryDTO, error) {
	if _, err := uc.load(ctx, actor, transferID); err != nil {
		return nil, err
	}
	rows, err := uc.transferRepo.ListHistory(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("historial: listar: %w", err)
	}
	out := make([]dto.TransferHistoryDTO, 0, len(rows))
	for _, h := range rows {
		out = append(out, dto.TransferHistoryDTO{
			ID:         h.ID,
			ItemID:     h.ItemID,
			Action:     h.Action,
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			Actor:      h.Actor,
			Notes:      h.Notes,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out, nil
}

func (uc *QueryUseCase) load(ctx context.Context, actor entity.Actor, transferID string) (*entity.Transfer, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	t, err := uc.transferRepo.GetByID(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("traslado: obtener: %w", err)
	}
	if t == nil || t.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (uc *QueryUseCase) list(ctx context.Context, actor entity.Actor, departmentID string, req dto.TransferListRequest, incoming bool) (*dto.TransferListResponse, error) {
	if !entity.IsMemberRole(actor.Role) {
		return nil, domain.ErrForbidden
	}
	dept, err := uc.departmentRepo.GetByID(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("traslados: obtener departamento: %w", err)
	}
	if dept == nil || dept.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrNotFound
	}

	f := repository.TransferFilter{OrganizationID: actor.OrganizationID}
	if incoming {
		f.RequestingDepartment = departmentID
	} else {
		f.SupplyingDepartment = departmentID
	}
	if s := strings.TrimSpace(req.Status); s != "" {
		st, err := entity.ParseTransferStatus(strings.ToUpper(s))
		if err != nil {
			return nil, domain.Invalid("status", err.Error())
		}
		f.Status = st
	}
	if p := strings.TrimSpace(req.Priority); p != "" {
		pr, err := entity.ParsePriority(strings.ToUpper(p))
		if err != nil {
			return nil, domain.Invalid("priority", err.Error())
		}
		f.Priority = pr
	}
	page := req.PageRequest.Normalize()
	f.Limit, f.Offset = page.Limit, page.Offset

	rows, total, err := uc.transferRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("traslados: listar: %w", err)
	}
	r := newResolver(uc)
	out := &dto.TransferListResponse{
		Items: make([]dto.TransferResponse, 0, len(rows)),
		Page:  dto.NewPageResponse(page, total),
	}
	for _, t := range rows {
		h, err := r.header(ctx, t)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *h)
	}
	return out, nil
}

// resolver memoriza nombres de catálogo durante una misma lectura.
type resolver struct {
	uc       *QueryUseCase
	depts    map[string]dto.NamedRef
	products map[string]dto.NamedRef
}

func newResolver(uc *QueryUseCase) *resolver {
	return &resolver{uc: uc, depts: map[string]dto.NamedRef{}, products: map[string]dto.NamedRef{}}
}

func (r *resolver) department(ctx context.Context, id string) (dto.NamedRef, error) {
	if ref, ok := r.depts[id]; ok {
		return ref, nil
	}
	d, err := r.uc.departmentRepo.GetByID(ctx, id)
	if err != nil {
		return dto.NamedRef{}, fmt.Errorf("traslado: obtener departamento: %w", err)
	}
	ref := dto.NamedRef{ID: id}
	if d != nil {
		ref.Code, ref.Name = d.Code, d.Name
	}
	r.depts[id] = ref
	return ref, nil
}

func (r *resolver) product(ctx context.Context, id string) (dto.NamedRef, error) {
	if ref, ok := r.products[id]; ok {
		return ref, nil
	}
	p, err := r.uc.productRepo.GetByID(ctx, id)
	if err != nil {
		return dto.NamedRef{}, fmt.Errorf("traslado: obtener producto: %w", err)
	}
	ref := dto.NamedRef{ID: id}
	if p != nil {
		ref.Code, ref.Name = p.Code, p.Name
	}
	r.products[id] = ref
	return ref, nil
}

func (r *resolver) header(ctx context.Context, t *entity.Transfer) (*dto.TransferResponse, error) {
	req, err := r.department(ctx, t.RequestingDepartment)
	if err != nil {
		return nil, err
	}
	sup, err := r.department(ctx, t.SupplyingDepartment)
	if err != nil {
		return nil, err
	}
	return &dto.TransferResponse{
		ID:                   t.ID,
		Code:                 t.Code,
		Title:                t.Title,
		RequestingDepartment: req,
		SupplyingDepartment:  sup,
		Status:               string(t.Status),
		Priority:             string(t.Priority),
		Reason:               t.Reason,
		Notes:                t.Notes,
		RequestedBy:          t.RequestedBy,
		RequestedAt:          t.RequestedAt,
		ApprovedAt:           t.ApprovedAt,
		PreparedAt:           t.PreparedAt,
		DeliveredAt:          t.DeliveredAt,
		CancelledAt:          t.CancelledAt,
		CancelReason:         t.CancelReason,
		ItemCount:            len(t.Items),
	}, nil
}
