package network

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brave-intl/compensation-engine/internal/config"
)

func testWalker() *Walker {
	cfg := config.New()
	return &Walker{rates: cfg.TierRates}
}

func TestTieredRateLowTier(t *testing.T) {
	w := testWalker()
	assert.True(t, decimal.NewFromFloat(0.02).Equal(w.TieredRate(0)))
	assert.True(t, decimal.NewFromFloat(0.02).Equal(w.TieredRate(1000)))
}

func TestTieredRateMidTier(t *testing.T) {
	w := testWalker()
	assert.True(t, decimal.NewFromFloat(0.01).Equal(w.TieredRate(1001)))
	assert.True(t, decimal.NewFromFloat(0.01).Equal(w.TieredRate(10000)))
}

func TestTieredRateTopTier(t *testing.T) {
	w := testWalker()
	assert.True(t, decimal.NewFromFloat(0.001).Equal(w.TieredRate(10001)))
	assert.True(t, decimal.NewFromFloat(0.001).Equal(w.TieredRate(10_000_000)))
}

func TestTieredRateEmptyTable(t *testing.T) {
	w := &Walker{rates: nil}
	assert.True(t, decimal.Zero.Equal(w.TieredRate(5)))
}
