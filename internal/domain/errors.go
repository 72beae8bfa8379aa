package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrDuplicateLot        = fmt.Errorf("%w: número de lote ya existe en el stock", ErrDuplicate)
	ErrDuplicateCode       = fmt.Errorf("%w: código de traslado ya existe en la organización", ErrDuplicate)
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrInvalidTransition   = errors.New("transición de estado inválida")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrBatchOverAllocation = errors.New("asignación de lotes inválida")
)

// ValidationError campo requerido ausente, cantidad no positiva, motivo vacío, etc.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Invalid atajo para construir un ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError reporta la acción intentada y el estado actual.
type InvalidTransitionError struct {
	Action string
	From   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("no se puede aplicar %q desde el estado %s", e.Action, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// InsufficientStockError la reserva FIFO no alcanzó a cubrir lo solicitado.
// Shortfall es la cantidad que quedó sin cubrir.
type InsufficientStockError struct {
	StockID   string
	Requested int64
	Shortfall int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente en %s: solicitado %d, faltan %d", e.StockID, e.Requested, e.Shortfall)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// BatchOverAllocationError selección manual de lotes inconsistente.
type BatchOverAllocationError struct {
	BatchID   string // vacío cuando el problema es la suma total
	Requested int64
	Available int64
	Reason    string
}

func (e *BatchOverAllocationError) Error() string {
	if e.BatchID == "" {
		return fmt.Sprintf("%s: seleccionado %d, esperado %d", e.Reason, e.Requested, e.Available)
	}
	return fmt.Sprintf("lote %s: %s (solicitado %d, disponible %d)", e.BatchID, e.Reason, e.Requested, e.Available)
}

func (e *BatchOverAllocationError) Is(target error) bool { return target == ErrBatchOverAllocation }

// LotMismatchError el stock receptor ya tiene el lote con estado o vencimiento incompatibles;
// acreditar encima mezclaría unidades de otro lote físico.
type LotMismatchError struct {
	LotNumber string
	Status    string
	Reason    string
}

func (e *LotMismatchError) Error() string {
	return fmt.Sprintf("lote %s en destino (%s): %s", e.LotNumber, e.Status, e.Reason)
}

func (e *LotMismatchError) Is(target error) bool { return target == ErrConflict }
