package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brave-intl/compensation-engine/internal/compensation/models"
)

func TestRankForStepIndex(t *testing.T) {
	assert.Equal(t, models.RankAchiever, rankForStepIndex(0))
	assert.Equal(t, models.RankLeader, rankForStepIndex(1))
	assert.Equal(t, models.RankProLeader, rankForStepIndex(2))
	assert.Equal(t, models.RankChampion, rankForStepIndex(3))
	assert.Equal(t, models.RankLegend, rankForStepIndex(4))
	// out of range falls back to the top rank rather than panicking.
	assert.Equal(t, models.RankLegend, rankForStepIndex(99))
}
