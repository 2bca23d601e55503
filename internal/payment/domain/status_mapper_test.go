package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     LocalStatus
	}{
		{"approved", StatusApproved},
		{"authorized", StatusApproved},
		{"rejected", StatusRejected},
		{"cancelled", StatusCancelled},
		{"refunded", StatusRefunded},
		{"charged_back", StatusRefunded},
		{"pending", StatusPending},
		{"in_process", StatusPending},
		{"in_mediation", StatusPending},
		{"APPROVED", StatusApproved},
		{" approved ", StatusApproved},
		{"", StatusPending},
		{"something_new", StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, MapProviderStatus(tt.provider))
		})
	}
}

func TestLocalStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	for _, s := range []LocalStatus{StatusApproved, StatusRejected, StatusCancelled, StatusRefunded} {
		assert.True(t, s.IsTerminal(), s)
		assert.True(t, s.IsValid(), s)
	}
	assert.True(t, StatusPending.IsValid())
	assert.False(t, LocalStatus("paid").IsValid())
}

func TestOrderStatusFor(t *testing.T) {
	tests := []struct {
		status LocalStatus
		want   OrderStatus
		ok     bool
	}{
		{StatusApproved, OrderStatusPaid, true},
		{StatusRejected, OrderStatusPaymentFailed, true},
		{StatusCancelled, OrderStatusPaymentFailed, true},
		{StatusRefunded, OrderStatusRefunded, true},
		{StatusPending, "", false},
	}

	for _, tt := range tests {
		got, ok := OrderStatusFor(tt.status)
		assert.Equal(t, tt.want, got, tt.status)
		assert.Equal(t, tt.ok, ok, tt.status)
	}
}
