// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scoring

import (
	"math"

	"github.com/danielhkuo/factcheck-votes/models"
)

// TrustPolicy weights the buckets that feed the trust score.
type TrustPolicy struct {
	UpWeight   float64 `yaml:"up_weight"`
	DownWeight float64 `yaml:"down_weight"`
	Neutral    float64 `yaml:"neutral"` // Returned when there is nothing to weigh
}

func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{UpWeight: 1, DownWeight: 1, Neutral: 50}
}

// Score computes 100 * wu*up / (wu*up + wd*down), clamped to [0, 100].
func (p TrustPolicy) Score(up, down int64) float64 {
	if up < 0 {
		up = 0
	}
	if down < 0 {
		down = 0
	}

	positive := p.UpWeight * float64(up)
	total := positive + p.DownWeight*float64(down)
	if total <= 0 {
		return clamp(p.Neutral)
	}

	// One decimal place is enough for display and keeps JSON stable
	return clamp(math.Round(positive/total*1000) / 10)
}

// Stats builds the read model for an aggregate
func (p TrustPolicy) Stats(agg models.Aggregate) models.VoteStats {
	return models.VoteStats{
		ItemID:      agg.ItemID,
		Upvotes:     agg.UpCount,
		Downvotes:   agg.DownCount,
		Score:       agg.Score(),
		Total:       agg.Total(),
		TrustScore:  p.Score(agg.UpCount, agg.DownCount),
		LastUpdated: agg.LastUpdated,
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
