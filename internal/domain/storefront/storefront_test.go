package storefront

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liberta/backend/internal/domain/order"
)

func TestPage_NativeIDBounds(t *testing.T) {
	empty := &Page{}
	assert.Equal(t, int64(0), empty.MinNativeID())
	assert.Equal(t, int64(0), empty.MaxNativeID())

	// Pages are sorted newest-first
	page := &Page{Orders: []SourceOrder{
		{NativeID: 150},
		{NativeID: 149},
		{NativeID: 148},
	}}
	assert.Equal(t, int64(150), page.MaxNativeID())
	assert.Equal(t, int64(148), page.MinNativeID())
}

func TestEligibleForIncremental(t *testing.T) {
	tests := []struct {
		native string
		want   bool
	}{
		{"ready", true},
		{"ready_to_ship", true},
		{"pending", false},
		{"confirmed", false},
		{"shipped", false},
		{"unheard_of", false},
	}
	for _, tt := range tests {
		o := &SourceOrder{NativeStatus: tt.native}
		assert.Equal(t, tt.want, EligibleForIncremental(o), tt.native)
	}
}

func TestMapNativeStatus_UnknownDefaultsToPending(t *testing.T) {
	assert.Equal(t, order.StatusPending, MapNativeStatus("weird_vendor_state"))
	assert.Equal(t, order.StatusReadyToShip, MapNativeStatus("ready"))
}
