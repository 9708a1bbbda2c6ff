package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mantled-app/creator-api/internal/generation"
)

func testLimits() map[string][4]int {
	return map[string][4]int{
		TierSeed:              {10, 5, 1, 1},
		TierRooted:            {50, 25, 3, 5},
		TierKingdomEnterprise: {Unlimited, Unlimited, Unlimited, Unlimited},
	}
}

func TestPolicy_Limit(t *testing.T) {
	p := NewPolicy(testLimits())

	assert.Equal(t, 10, p.Limit(TierSeed, generation.CapabilityText))
	assert.Equal(t, 5, p.Limit(TierSeed, generation.CapabilityImage))
	assert.Equal(t, 3, p.Limit(TierRooted, generation.CapabilityAvatar))
	assert.Equal(t, Unlimited, p.Limit(TierKingdomEnterprise, generation.CapabilityVideo))
}

func TestPolicy_UnknownTierGetsSeedRow(t *testing.T) {
	p := NewPolicy(testLimits())

	assert.Equal(t, 10, p.Limit("legacy_plan", generation.CapabilityText))
	assert.Equal(t, 1, p.Limit("", generation.CapabilityVideo))
}

func TestPolicy_UnknownCapability(t *testing.T) {
	p := NewPolicy(testLimits())
	assert.Equal(t, 0, p.Limit(TierRooted, generation.Capability("audio")))
}

func TestPolicy_CopiesInput(t *testing.T) {
	limits := testLimits()
	p := NewPolicy(limits)
	limits[TierSeed] = [4]int{999, 999, 999, 999}

	assert.Equal(t, 10, p.Limit(TierSeed, generation.CapabilityText))
}
