package quota

import (
	"github.com/mantled-app/creator-api/internal/generation"
)

// Unlimited is the sentinel limit for tiers with no ceiling.
const Unlimited = -1

// UnlimitedRemaining is what GetRemaining reports for unlimited tiers.
const UnlimitedRemaining = 1 << 30

// Tier names, least to most generous.
const (
	TierSeed              = "seed"
	TierRooted            = "rooted"
	TierCommissioned      = "commissioned"
	TierMantledPro        = "mantled_pro"
	TierKingdomEnterprise = "kingdom_enterprise"
)

// Policy is the immutable tier → capability → period-limit table, loaded
// once at startup.
type Policy struct {
	limits map[string][4]int
}

// NewPolicy builds a Policy from per-tier limit rows in canonical
// capability order (text, image, avatar, video).
func NewPolicy(limits map[string][4]int) *Policy {
	copied := make(map[string][4]int, len(limits))
	for tier, row := range limits {
		copied[tier] = row
	}
	return &Policy{limits: copied}
}

// Limit returns the period limit for the tier and capability. An unknown
// tier gets the seed row, which is the most restrictive.
func (p *Policy) Limit(tier string, c generation.Capability) int {
	row, ok := p.limits[tier]
	if !ok {
		row = p.limits[TierSeed]
	}
	idx := c.Index()
	if idx < 0 {
		return 0
	}
	return row[idx]
}
