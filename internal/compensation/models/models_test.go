package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValueScanRoundTrip(t *testing.T) {
	m := Metadata{"batch_id": "abc123", "source": "settler"}

	raw, err := m.Value()
	require.NoError(t, err)
	require.NotNil(t, raw)

	var out Metadata
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, m, out)
}

func TestMetadataValueNil(t *testing.T) {
	var m Metadata
	raw, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestMetadataScanNilSrc(t *testing.T) {
	m := Metadata{"x": "y"}
	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestMetadataScanUnsupportedType(t *testing.T) {
	var m Metadata
	err := m.Scan(42)
	assert.Error(t, err)
}

func TestRankIndex(t *testing.T) {
	assert.Equal(t, 0, RankStarter.Index())
	assert.Equal(t, 1, RankAchiever.Index())
	assert.Equal(t, 5, RankLegend.Index())
	assert.Equal(t, -1, Rank("unknown").Index())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderPending.Terminal())
	assert.True(t, OrderPaid.Terminal())
	assert.True(t, OrderFailed.Terminal())
	assert.True(t, OrderRefunded.Terminal())
}

func TestPartnerTotalSalesUnits(t *testing.T) {
	p := &Partner{DirectSalesUnits: 40, TeamSalesUnits: 60}
	assert.Equal(t, int64(100), p.TotalSalesUnits())
}
