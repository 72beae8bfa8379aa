// Package transfer contiene la máquina de estados de los ítems de traslado y el
// cálculo del estado agregado del traslado (servicio de dominio, sin I/O).
package transfer

import (
	"fmt"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// Action transición solicitada sobre un ítem.
type Action string

// Acciones del flujo.
const (
	ActionApprove        Action = "approve"
	ActionPrepare        Action = "prepare"
	ActionDeliver        Action = "deliver"
	ActionCancel         Action = "cancel"
	ActionCancelPrepared Action = "cancel_prepared" // compensación: libera lotes escogidos antes de cancelar
)

// Next devuelve el estado destino de aplicar action sobre un ítem en estado from.
//
//	PENDING  --approve--> APPROVED --prepare--> PREPARED --deliver--> DELIVERED
//	PENDING|APPROVED --cancel--> CANCELLED
//	PREPARED --cancel_prepared--> CANCELLED
func Next(from entity.ItemStatus, action Action) (entity.ItemStatus, error) {
	switch action {
	case ActionApprove:
		if from == entity.ItemPending {
			return entity.ItemApproved, nil
		}
	case ActionPrepare:
		if from == entity.ItemApproved {
			return entity.ItemPrepared, nil
		}
	case ActionDeliver:
		if from == entity.ItemPrepared {
			return entity.ItemDelivered, nil
		}
	case ActionCancel:
		if from == entity.ItemPending || from == entity.ItemApproved {
			return entity.ItemCancelled, nil
		}
	case ActionCancelPrepared:
		if from == entity.ItemPrepared {
			return entity.ItemCancelled, nil
		}
	default:
		return "", fmt.Errorf("%w: acción desconocida %q", domain.ErrInvalidInput, action)
	}
	return "", &domain.InvalidTransitionError{Action: string(action), From: string(from)}
}

// CancelAction escoge el camino de cancelación para el estado actual del ítem.
func CancelAction(from entity.ItemStatus) Action {
	if from == entity.ItemPrepared {
		return ActionCancelPrepared
	}
	return ActionCancel
}

// HistoryAction nombre con el que se registra la acción en el historial.
func HistoryAction(a Action) string {
	switch a {
	case ActionApprove:
		return entity.HistoryApproved
	case ActionPrepare:
		return entity.HistoryPrepared
	case ActionDeliver:
		return entity.HistoryDelivered
	case ActionCancel, ActionCancelPrepared:
		return entity.HistoryCancelled
	default:
		return string(a)
	}
}

// Rollup calcula el estado del traslado a partir de sus ítems.
// Los ítems cancelados no cuentan para la completitud: DELIVERED + CANCELLED => COMPLETED.
func Rollup(items []entity.ItemStatus) entity.TransferStatus {
	if len(items) == 0 {
		return entity.TransferPending
	}
	var delivered, cancelled int
	least := entity.ItemDelivered
	for _, s := range items {
		switch s {
		case entity.ItemDelivered:
			delivered++
		case entity.ItemCancelled:
			cancelled++
		case entity.ItemPending, entity.ItemApproved, entity.ItemPrepared:
			if rank(s) < rank(least) {
				least = s
			}
		}
	}
	active := len(items) - delivered - cancelled
	switch {
	case cancelled == len(items):
		return entity.TransferCancelled
	case active == 0:
		return entity.TransferCompleted
	case delivered > 0:
		return entity.TransferPartial
	}
	switch least {
	case entity.ItemPending:
		return entity.TransferPending
	case entity.ItemApproved:
		return entity.TransferApproved
	default:
		return entity.TransferPrepared
	}
}

func rank(s entity.ItemStatus) int {
	switch s {
	case entity.ItemPending:
		return 0
	case entity.ItemApproved:
		return 1
	case entity.ItemPrepared:
		return 2
	case entity.ItemDelivered:
		return 3
	default:
		return 4
	}
}

// CheckCancellable un traslado solo se cancela mientras no esté completo ni cancelado.
func CheckCancellable(status entity.TransferStatus) error {
	switch status {
	case entity.TransferCompleted, entity.TransferCancelled:
		return &domain.InvalidTransitionError{Action: "cancel_transfer", From: string(status)}
	default:
		return nil
	}
}
