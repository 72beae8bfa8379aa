package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	StockUC    *inventory.StockUseCase
	WorkflowUC *transfer.WorkflowUseCase
	QueryUC    *transfer.QueryUseCase
	DispatchUC *transfer.DispatchNoteUseCase
	JWTSecret  string
	JWTIssuer  string
}

// Router registra las rutas de la API. Todas requieren Bearer Token y un rol de la organización.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer), RequireRole())
	elevated := RequireRole(entity.RoleOwner, entity.RoleAdmin)

	// Stock por departamento
	stockHandler := NewStockHandler(deps.StockUC)
	stocks := api.Group("/stocks")
	stocks.Post("/", stockHandler.Ensure)
	stocks.Get("/:id", stockHandler.GetByID)
	stocks.Get("/:id/batches", stockHandler.ListBatches)
	stocks.Post("/:id/batches", stockHandler.ReceiveBatch)
	stocks.Post("/:id/reserve", stockHandler.Reserve)
	stocks.Post("/:id/release", stockHandler.Release)
	api.Post("/batches/:id/adjust", stockHandler.AdjustBatch)

	// Traslados
	transferHandler := NewTransferHandler(deps.WorkflowUC, deps.QueryUC, deps.DispatchUC)
	transfers := api.Group("/transfers")
	transfers.Post("/", transferHandler.Create)
	transfers.Get("/:id", transferHandler.GetByID)
	transfers.Get("/:id/history", transferHandler.History)
	transfers.Get("/:id/dispatch-note", transferHandler.DispatchNote)
	transfers.Post("/:id/approve", transferHandler.ApproveAll)
	transfers.Post("/:id/cancel", elevated, transferHandler.Cancel)
	transfers.Post("/:id/items/:itemId/approve", transferHandler.ApproveItem)
	transfers.Post("/:id/items/:itemId/prepare", transferHandler.PrepareItem)
	transfers.Post("/:id/items/:itemId/deliver", transferHandler.DeliverItem)
	transfers.Post("/:id/items/:itemId/cancel", elevated, transferHandler.CancelItem)

	// Vistas por departamento
	departments := api.Group("/departments")
	departments.Get("/:id/stocks", stockHandler.ListByDepartment)
	departments.Get("/:id/transfers/outgoing", transferHandler.ListOutgoing)
	departments.Get("/:id/transfers/incoming", transferHandler.ListIncoming)
}
