package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrder_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		//発送後のキャンセルは不可
		{OrderStatusShipped, OrderStatusCancelled, false},
		//終端からは動けない
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		//同じステータスへの遷移も不可
		{OrderStatusPending, OrderStatusPending, false},
	}

	for _, tc := range cases {
		o := Order{Status: tc.from}
		assert.Equal(t, tc.want, o.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestIsValidOrderStatus(t *testing.T) {
	for _, s := range AllOrderStatuses {
		assert.True(t, IsValidOrderStatus(s))
	}
	assert.False(t, IsValidOrderStatus("paid"))
	assert.False(t, IsValidOrderStatus("PENDING"))
	assert.False(t, IsValidOrderStatus(""))
}

func TestOrder_AppendNote(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var o Order
	o.AppendNote("first note", at)
	assert.Equal(t, "[2025-06-01T12:00:00Z] first note", o.Notes)

	o.AppendNote("second note", at.Add(time.Hour))
	lines := strings.Split(o.Notes, "\n")
	assert.Equal(t, 2, len(lines))
	assert.Equal(t, "[2025-06-01T13:00:00Z] second note", lines[1])

	//空メモは追記しない
	o.AppendNote("", at)
	assert.Equal(t, 2, len(strings.Split(o.Notes, "\n")))
}
