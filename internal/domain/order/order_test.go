package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsValid(t *testing.T) {
	valid := []Status{
		StatusPending, StatusConfirmed, StatusReadyToShip,
		StatusShipped, StatusDelivered, StatusCancelled, StatusReturned,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), s)
	}

	assert.False(t, Status("SHIPPING").IsValid())
	assert.False(t, Status("").IsValid())
	assert.False(t, Status("pending").IsValid())
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusConfirmed, false},
		{StatusReadyToShip, false},
		{StatusShipped, false},
		{StatusDelivered, true},
		{StatusCancelled, true},
		{StatusReturned, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsTerminal(), tt.status)
	}
}
