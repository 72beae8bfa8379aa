package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/application/inventory"
)

// StockHandler libro de lotes por departamento: entradas, ajustes, reservas y consulta (protegido).
type StockHandler struct {
	uc *inventory.StockUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *inventory.StockUseCase) *StockHandler {
	return &StockHandler{uc: uc}
}

// Ensure godoc
// @Summary      Crear u obtener stock de un producto en un departamento
// @Tags         stocks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.EnsureStockRequest  true  "Departamento, producto y umbrales"
// @Success      200   {object}  dto.StockResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/stocks [post]
func (h *StockHandler) Ensure(c *fiber.Ctx) error {
	var in dto.EnsureStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.EnsureStock(c.UserContext(), ActorFromCtx(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Stock con cantidades derivadas
// @Tags         stocks
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del stock"
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stocks/{id} [get]
func (h *StockHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetStock(c.UserContext(), ActorFromCtx(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListByDepartment godoc
// @Summary      Stocks del departamento
// @Tags         stocks
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del departamento"
// @Param        limit   query  int     false  "Límite"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200  {array}   dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/departments/{id}/stocks [get]
func (h *StockHandler) ListByDepartment(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	out, err := h.uc.ListDepartmentStocks(c.UserContext(), ActorFromCtx(c), c.Params("id"), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListBatches godoc
// @Summary      Lotes del stock en orden FIFO
// @Tags         stocks
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del stock"
// @Success      200  {array}   dto.BatchResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stocks/{id}/batches [get]
func (h *StockHandler) ListBatches(c *fiber.Ctx) error {
	out, err := h.uc.ListBatches(c.UserContext(), ActorFromCtx(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ReceiveBatch godoc
// @Summary      Registrar entrada de lote
// @Tags         stocks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID del stock"
// @Param        body  body  dto.ReceiveBatchRequest  true  "Lote, cantidad, vencimiento y precios"
// @Success      201   {object}  dto.BatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stocks/{id}/batches [post]
func (h *StockHandler) ReceiveBatch(c *fiber.Ctx) error {
	var in dto.ReceiveBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.ReceiveBatch(c.UserContext(), ActorFromCtx(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Reserve godoc
// @Summary      Reservar stock (FIFO)
// @Description  Todo o nada: con faltante no se reserva nada y responde 409.
// @Tags         stocks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID del stock"
// @Param        body  body  dto.QuantityRequest  true  "Cantidad"
// @Success      200   {object}  dto.AllocationResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stocks/{id}/reserve [post]
func (h *StockHandler) Reserve(c *fiber.Ctx) error {
	var in dto.QuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Reserve(c.UserContext(), ActorFromCtx(c), c.Params("id"), in.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Release godoc
// @Summary      Liberar stock reservado (FIFO)
// @Tags         stocks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID del stock"
// @Param        body  body  dto.QuantityRequest  true  "Cantidad"
// @Success      200   {object}  dto.AllocationResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stocks/{id}/release [post]
func (h *StockHandler) Release(c *fiber.Ctx) error {
	var in dto.QuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Release(c.UserContext(), ActorFromCtx(c), c.Params("id"), in.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// AdjustBatch godoc
// @Summary      Ajustar lote
// @Description  Delta firmado sobre disponible y total; nunca deja el disponible negativo.
// @Tags         stocks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID del lote"
// @Param        body  body  dto.AdjustBatchRequest  true  "Delta y motivo"
// @Success      200   {object}  dto.BatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/batches/{id}/adjust [post]
func (h *StockHandler) AdjustBatch(c *fiber.Ctx) error {
	var in dto.AdjustBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.AdjustBatch(c.UserContext(), ActorFromCtx(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
