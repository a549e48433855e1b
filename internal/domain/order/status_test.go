package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"draft to pending", StatusDraft, StatusPending, true},
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"confirmed to processing", StatusConfirmed, StatusProcessing, true},
		{"processing to packed", StatusProcessing, StatusPacked, true},
		{"packed to shipped", StatusPacked, StatusShipped, true},
		{"shipped to out for delivery", StatusShipped, StatusOutForDelivery, true},
		{"out for delivery to delivered", StatusOutForDelivery, StatusDelivered, true},
		{"delivered to completed", StatusDelivered, StatusCompleted, true},
		{"delivered to return requested", StatusDelivered, StatusReturnRequested, true},
		{"completed to return requested", StatusCompleted, StatusReturnRequested, true},
		{"return requested to returned", StatusReturnRequested, StatusReturned, true},

		{"pending cancellable", StatusPending, StatusCancelled, true},
		{"confirmed cancellable", StatusConfirmed, StatusCancelled, true},
		{"processing cancellable", StatusProcessing, StatusCancelled, true},
		{"packed cancellable", StatusPacked, StatusCancelled, true},

		{"pending cannot skip to delivered", StatusPending, StatusDelivered, false},
		{"pending cannot skip to shipped", StatusPending, StatusShipped, false},
		{"draft cannot skip to confirmed", StatusDraft, StatusConfirmed, false},
		{"shipped cannot cancel", StatusShipped, StatusCancelled, false},
		{"delivered cannot cancel", StatusDelivered, StatusCancelled, false},
		{"delivered cannot go backwards", StatusDelivered, StatusShipped, false},
		{"cancelled is terminal", StatusCancelled, StatusPending, false},
		{"returned is terminal", StatusReturned, StatusCompleted, false},
		{"completed cannot reopen", StatusCompleted, StatusProcessing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_Predicates(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusReturned.IsTerminal())
	assert.False(t, StatusCompleted.IsTerminal()) // return branch stays open
	assert.False(t, StatusPending.IsTerminal())

	assert.True(t, StatusPending.IsCancellable())
	assert.True(t, StatusConfirmed.IsCancellable())
	assert.True(t, StatusProcessing.IsCancellable())
	assert.False(t, StatusPacked.IsCancellable())
	assert.False(t, StatusShipped.IsCancellable())

	assert.True(t, StatusPacked.IsPreShipment())
	assert.False(t, StatusShipped.IsPreShipment())

	assert.True(t, StatusOutForDelivery.IsValid())
	assert.False(t, OrderStatus("BOGUS").IsValid())
}
