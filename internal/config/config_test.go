package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasSaneDefaults(t *testing.T) {
	cfg := New()
	require.NotNil(t, cfg)

	assert.True(t, cfg.UnitPrice.Equal(decimal.NewFromInt(5000)))
	assert.True(t, cfg.DirectReferralPercent.Equal(decimal.NewFromFloat(0.20)))
	assert.True(t, cfg.MinWalletWithdrawal.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, time.Monday, cfg.SchedulerWeekday)
	assert.Len(t, cfg.TierRates, 3)
	assert.Len(t, cfg.RankLadder, 5)
	assert.Equal(t, "achiever", cfg.RankLadder[0].Rank)
	assert.Equal(t, "legend", cfg.RankLadder[len(cfg.RankLadder)-1].Rank)
}

func TestTierRatesAscendingAndTerminalUnbounded(t *testing.T) {
	cfg := New()
	for i := 1; i < len(cfg.TierRates)-1; i++ {
		assert.True(t, cfg.TierRates[i].MaxUnits.GreaterThan(cfg.TierRates[i-1].MaxUnits), "bounded tiers must ascend")
	}
	last := cfg.TierRates[len(cfg.TierRates)-1]
	assert.True(t, last.MaxUnits.IsZero(), "final tier must be unbounded (MaxUnits zero sentinel)")
}
