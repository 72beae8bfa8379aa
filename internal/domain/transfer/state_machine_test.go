package transfer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/transfer"
)

func TestNext_TransicionesValidas(t *testing.T) {
	cases := []struct {
		from   entity.ItemStatus
		action transfer.Action
		want   entity.ItemStatus
	}{
		{entity.ItemPending, transfer.ActionApprove, entity.ItemApproved},
		{entity.ItemApproved, transfer.ActionPrepare, entity.ItemPrepared},
		{entity.ItemPrepared, transfer.ActionDeliver, entity.ItemDelivered},
		{entity.ItemPending, transfer.ActionCancel, entity.ItemCancelled},
		{entity.ItemApproved, transfer.ActionCancel, entity.ItemCancelled},
		{entity.ItemPrepared, transfer.ActionCancelPrepared, entity.ItemCancelled},
	}
	for _, tc := range cases {
		got, err := transfer.Next(tc.from, tc.action)
		require.NoError(t, err, "%s desde %s", tc.action, tc.from)
		assert.Equal(t, tc.want, got)
	}
}

func TestNext_TransicionesInvalidas(t *testing.T) {
	cases := []struct {
		from   entity.ItemStatus
		action transfer.Action
	}{
		{entity.ItemApproved, transfer.ActionApprove},
		{entity.ItemCancelled, transfer.ActionPrepare},
		{entity.ItemPending, transfer.ActionDeliver},
		{entity.ItemPrepared, transfer.ActionCancel},
		{entity.ItemDelivered, transfer.ActionCancel},
		{entity.ItemDelivered, transfer.ActionCancelPrepared},
	}
	for _, tc := range cases {
		_, err := transfer.Next(tc.from, tc.action)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

		var te *domain.InvalidTransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, string(tc.action), te.Action)
		assert.Equal(t, string(tc.from), te.From)
	}
}

func TestNext_AccionDesconocida(t *testing.T) {
	_, err := transfer.Next(entity.ItemPending, transfer.Action("teleport"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancelAction(t *testing.T) {
	assert.Equal(t, transfer.ActionCancelPrepared, transfer.CancelAction(entity.ItemPrepared))
	assert.Equal(t, transfer.ActionCancel, transfer.CancelAction(entity.ItemApproved))
	assert.Equal(t, transfer.ActionCancel, transfer.CancelAction(entity.ItemPending))
}

func TestRollup(t *testing.T) {
	cases := []struct {
		name  string
		items []entity.ItemStatus
		want  entity.TransferStatus
	}{
		{"sin ítems", nil, entity.TransferPending},
		{"todos entregados", []entity.ItemStatus{entity.ItemDelivered, entity.ItemDelivered}, entity.TransferCompleted},
		{"entregado y cancelado", []entity.ItemStatus{entity.ItemDelivered, entity.ItemCancelled}, entity.TransferCompleted},
		{"todos cancelados", []entity.ItemStatus{entity.ItemCancelled, entity.ItemCancelled}, entity.TransferCancelled},
		{"entregado y pendiente", []entity.ItemStatus{entity.ItemDelivered, entity.ItemPending}, entity.TransferPartial},
		{"entregado y preparado", []entity.ItemStatus{entity.ItemDelivered, entity.ItemPrepared}, entity.TransferPartial},
		{"menos avanzado manda", []entity.ItemStatus{entity.ItemPrepared, entity.ItemApproved}, entity.TransferApproved},
		{"pendiente con cancelado", []entity.ItemStatus{entity.ItemPending, entity.ItemCancelled}, entity.TransferPending},
		{"preparados", []entity.ItemStatus{entity.ItemPrepared, entity.ItemPrepared, entity.ItemCancelled}, entity.TransferPrepared},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transfer.Rollup(tc.items))
		})
	}
}

func TestCheckCancellable(t *testing.T) {
	assert.NoError(t, transfer.CheckCancellable(entity.TransferPending))
	assert.NoError(t, transfer.CheckCancellable(entity.TransferPartial))
	assert.ErrorIs(t, transfer.CheckCancellable(entity.TransferCompleted), domain.ErrInvalidTransition)
	assert.ErrorIs(t, transfer.CheckCancellable(entity.TransferCancelled), domain.ErrInvalidTransition)
}
