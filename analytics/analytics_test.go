package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRates(t *testing.T) {
	counts := FunnelCounts{
		Total:     120,
		Sent:      100,
		Delivered: 80,
		Opened:    40,
		Clicked:   10,
		Responded: 8,
		Bounced:   5,
	}

	rates := ComputeRates(counts)
	assert.InDelta(t, 0.80, rates.DeliveryRate, 1e-9)
	assert.InDelta(t, 0.05, rates.BounceRate, 1e-9)
	assert.InDelta(t, 0.50, rates.OpenRate, 1e-9)
	assert.InDelta(t, 0.125, rates.ClickRate, 1e-9)
	assert.InDelta(t, 0.10, rates.ResponseRate, 1e-9)
}

func TestComputeRatesZeroDenominators(t *testing.T) {
	assert.Equal(t, Rates{}, ComputeRates(FunnelCounts{}))

	// Sends without deliveries still yield a bounce rate but no open rate
	rates := ComputeRates(FunnelCounts{Sent: 10, Bounced: 10})
	assert.InDelta(t, 1.0, rates.BounceRate, 1e-9)
	assert.Zero(t, rates.OpenRate)
	assert.Zero(t, rates.DeliveryRate)
}
