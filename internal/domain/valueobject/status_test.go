package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPendingPayment, OrderStatusPaid, true},
		{OrderStatusPendingPayment, OrderStatusFailed, true},
		{OrderStatusPendingPayment, OrderStatusCancelled, true},
		{OrderStatusPendingPayment, OrderStatusRefunded, false},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusFailed, OrderStatusPaid, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusPaid, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestWithdrawalStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, WithdrawalStatusPending.CanTransitionTo(WithdrawalStatusApproved))
	assert.True(t, WithdrawalStatusPending.CanTransitionTo(WithdrawalStatusRejected))
	assert.True(t, WithdrawalStatusApproved.CanTransitionTo(WithdrawalStatusProcessing))
	assert.True(t, WithdrawalStatusApproved.CanTransitionTo(WithdrawalStatusCompleted))
	assert.True(t, WithdrawalStatusProcessing.CanTransitionTo(WithdrawalStatusCompleted))

	assert.False(t, WithdrawalStatusPending.CanTransitionTo(WithdrawalStatusCompleted))
	assert.False(t, WithdrawalStatusApproved.CanTransitionTo(WithdrawalStatusRejected))
	assert.False(t, WithdrawalStatusRejected.CanTransitionTo(WithdrawalStatusApproved))
	assert.False(t, WithdrawalStatusCompleted.CanTransitionTo(WithdrawalStatusPending))
}

func TestWithdrawalStatus_IsOpen(t *testing.T) {
	assert.True(t, WithdrawalStatusPending.IsOpen())
	assert.True(t, WithdrawalStatusProcessing.IsOpen())
	assert.False(t, WithdrawalStatusCompleted.IsOpen())
	assert.False(t, WithdrawalStatusRejected.IsOpen())
}

func TestPaymentOutcome_Mapping(t *testing.T) {
	assert.Equal(t, OrderStatusPaid, OutcomeSucceeded.OrderStatus())
	assert.Equal(t, OrderStatusFailed, OutcomeFailed.OrderStatus())
	assert.Equal(t, OrderStatusCancelled, OutcomeCanceled.OrderStatus())

	assert.Equal(t, PaymentStatusCaptured, OutcomeSucceeded.PaymentStatus())
	assert.Equal(t, PaymentStatusFailed, OutcomeFailed.PaymentStatus())
	assert.Equal(t, PaymentStatusFailed, OutcomeCanceled.PaymentStatus())
}

func TestNewOrderStatus(t *testing.T) {
	s, err := NewOrderStatus("PAID")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, s)

	_, err = NewOrderStatus("draft")
	assert.Error(t, err)
}
