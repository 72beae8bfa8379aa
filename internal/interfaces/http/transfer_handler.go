package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// TransferHandler expone el flujo de traslados entre departamentos (protegido).
type TransferHandler struct {
	workflow *transfer.WorkflowUseCase
	query    *transfer.QueryUseCase
	dispatch *transfer.DispatchNoteUseCase
}

// NewTransferHandler construye el handler.
func NewTransferHandler(workflow *transfer.WorkflowUseCase, query *transfer.QueryUseCase, dispatch *transfer.DispatchNoteUseCase) *TransferHandler {
	return &TransferHandler{workflow: workflow, query: query, dispatch: dispatch}
}

// respond presenta el agregado devuelto por una operación de flujo.
func (h *TransferHandler) respond(c *fiber.Ctx, status int, t *entity.Transfer, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.query.Present(c.UserContext(), t)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(status).JSON(out)
}

// Create godoc
// @Summary      Crear traslado
// @Description  Crea el traslado y sus ítems en PENDING. No reserva stock.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateTransferRequest  true  "Cabecera e ítems"
// @Success      201   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers [post]
func (h *TransferHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	t, err := h.workflow.CreateTransfer(c.UserContext(), ActorFromCtx(c), in)
	return h.respond(c, fiber.StatusCreated, t, err)
}

// GetByID godoc
// @Summary      Detalle de traslado
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del traslado"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [get]
func (h *TransferHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.query.GetTransferWithDetails(c.UserContext(), ActorFromCtx(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// History godoc
// @Summary      Historial del traslado
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del traslado"
// @Success      200  {array}   dto.TransferHistoryDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/history [get]
func (h *TransferHandler) History(c *fiber.Ctx) error {
	out, err := h.query.GetTransferHistory(c.UserContext(), ActorFromCtx(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// DispatchNote godoc
// @Summary      Nota de despacho (PDF)
// @Tags         transfers
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID del traslado"
// @Success      200  {file}    file
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/dispatch-note [get]
func (h *TransferHandler) DispatchNote(c *fiber.Ctx) error {
	pdf, filename, err := h.dispatch.DownloadDispatchNote(c.UserContext(), ActorFromCtx(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(pdf)
}

// ApproveAll godoc
// @Summary      Aprobar todos los ítems pendientes
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string            true   "ID del traslado"
// @Param        body  body  dto.NotesRequest  false  "Notas"
// @Success      200   {object}  dto.TransferResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/approve [post]
func (h *TransferHandler) ApproveAll(c *fiber.Ctx) error {
	var in dto.NotesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	t, err := h.workflow.ApproveAll(c.UserContext(), ActorFromCtx(c), c.Params("id"), in)
	return h.respond(c, fiber.StatusOK, t, err)
}

// Cancel godoc
// @Summary      Cancelar traslado
// @Description  Cancela todos los ítems no terminales; libera las reservas de los preparados. Solo owner/admin.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "ID del traslado"
// @Param        body  body  dto.CancelRequest  true  "Motivo"
// @Success      200   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	t, err := h.workflow.CancelTransfer(c.UserContext(), ActorFromCtx(c), c.Params("id"), in)
	return h.respond(c, fiber.StatusOK, t, err)
}

// ApproveItem godoc
// @Summary      Aprobar ítem
// @Description  Sin approved_quantity se aprueba lo solicitado.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path  string                  true   "ID del traslado"
// @Param        itemId  path  string                  true   "ID del ítem"
// @Param        body    body  dto.ApproveItemRequest  false  "Cantidad aprobada y notas"
// @Success      200     {object}  dto.TransferResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/items/{itemId}/approve [post]
func (h *TransferHandler) ApproveItem(c *fiber.Ctx) error {
	var in dto.ApproveItemRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	t, err := h.workflow.ApproveItem(c.UserContext(), ActorFromCtx(c), c.Params("id"), c.Params("itemId"), in)
	return h.respond(c, fiber.StatusOK, t, err)
}

// PrepareItem godoc
// @Summary      Preparar ítem
// @Description  Lotes escogidos; la suma debe ser igual a la cantidad aprobada.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path  string                  true  "ID del traslado"
// @Param        itemId  path  string                  true  "ID del ítem"
// @Param        body    body  dto.PrepareItemRequest  true  "Lotes y cantidades"
// @Success      200     {object}  dto.TransferResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/items/{itemId}/prepare [post]
func (h *TransferHandler) PrepareItem(c *fiber.Ctx) error {
	var in dto.PrepareItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	t, err := h.workflow.PrepareItem(c.UserContext(), ActorFromCtx(c), c.Params("id"), c.Params("itemId"), in)
	return h.respond(c, fiber.StatusOK, t, err)
}

// DeliverItem godoc
// @Summary      Entregar ítem
// @Description  Sin receipts se recibe todo lo enviado.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path  string                  true   "ID del traslado"
// @Param        itemId  path  string                  true   "ID del ítem"
// @Param        body    body  dto.DeliverItemRequest  false  "Cantidades recibidas por lote"
// @Success      200     {object}  dto.TransferResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/items/{itemId}/deliver [post]
func (h *TransferHandler) DeliverItem(c *fiber.Ctx) error {
	var in dto.DeliverItemRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	t, err := h.workflow.DeliverItem(c.UserContext(), ActorFromCtx(c), c.Params("id"), c.Params("itemId"), in)
	return h.respond(c, fiber.StatusOK, t, err)
}

// CancelItem godoc
// @Summary      Cancelar ítem
// @Description  Solo owner/admin. Un ítem preparado devuelve sus reservas al proveedor.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id      path  string             true  "ID del traslado"
// @Param        itemId  path  string             true  "ID del ítem"
// @Param        body    body  dto.CancelRequest  true  "Motivo"
// @Success      200     {object}  dto.TransferResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      403     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/items/{itemId}/cancel [post]
func (h *TransferHandler) CancelItem(c *fiber.Ctx) error {
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	t, err := h.workflow.CancelItem(c.UserContext(), ActorFromCtx(c), c.Params("id"), c.Params("itemId"), in)
	return h.respond(c, fiber.StatusOK, t, err)
}

// ListOutgoing godoc
// @Summary      Traslados que el departamento debe surtir
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id        path   string  true   "ID del departamento"
// @Param        status    query  string  false  "PENDING, APPROVED, PREPARED, PARTIAL, COMPLETED, CANCELLED"
// @Param        priority  query  string  false  "NORMAL, URGENT, CRITICAL"
// @Param        limit     query  int     false  "Límite (máx. 100)"
// @Param        offset    query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.TransferListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/departments/{id}/transfers/outgoing [get]
func (h *TransferHandler) ListOutgoing(c *fiber.Ctx) error {
	var in dto.TransferListRequest
	if err := c.QueryParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.query.ListOutgoing(c.UserContext(), ActorFromCtx(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListIncoming godoc
// @Summary      Traslados solicitados por el departamento
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id        path   string  true   "ID del departamento"
// @Param        status    query  string  false  "Estado del traslado"
// @Param        priority  query  string  false  "Prioridad"
// @Param        limit     query  int     false  "Límite (máx. 100)"
// @Param        offset    query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.TransferListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/departments/{id}/transfers/incoming [get]
func (h *TransferHandler) ListIncoming(c *fiber.Ctx) error {
	var in dto.TransferListRequest
	if err := c.QueryParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.query.ListIncoming(c.UserContext(), ActorFromCtx(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
