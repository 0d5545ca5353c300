package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvancesTo(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusOpened, true},
		{StatusDelivered, StatusClicked, true},
		{StatusClicked, StatusResponded, true},

		// No regressions
		{StatusOpened, StatusDelivered, false},
		{StatusResponded, StatusClicked, false},
		{StatusSent, StatusSent, false},

		// Terminal failures are reachable from any engagement state
		{StatusSent, StatusBounced, true},
		{StatusOpened, StatusUnsubscribed, true},

		// Pre-send statuses never advance
		{StatusPending, StatusDelivered, false},
		{StatusSkipped, StatusOpened, false},
		{StatusFailed, StatusBounced, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AdvancesTo(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
