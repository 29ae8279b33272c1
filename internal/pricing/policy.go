// Package pricing resolves the credit cost of a generation job from a
// cascading, overridable cost policy.
package pricing

import (
	"encoding/json"
	"fmt"
)

// ModelCost is either a flat price or a detailed override table. In the JSON
// form a bare number means flat; an object maps override keys to prices and
// must carry a "default" entry.
type ModelCost struct {
	Flat     *int
	Detailed map[string]int
}

// UnmarshalJSON accepts both the flat-number and the override-table forms.
func (m *ModelCost) UnmarshalJSON(data []byte) error {
	var flat int
	if err := json.Unmarshal(data, &flat); err == nil {
		m.Flat = &flat
		m.Detailed = nil
		return nil
	}
	var detailed map[string]int
	if err := json.Unmarshal(data, &detailed); err != nil {
		return fmt.Errorf("pricing: model cost must be a number or an override table: %w", err)
	}
	m.Flat = nil
	m.Detailed = detailed
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON accepts.
func (m ModelCost) MarshalJSON() ([]byte, error) {
	if m.Flat != nil {
		return json.Marshal(*m.Flat)
	}
	return json.Marshal(m.Detailed)
}

// FlatCost builds a flat-price model entry.
func FlatCost(price int) ModelCost {
	return ModelCost{Flat: &price}
}

// DetailedCost builds an override-table model entry.
func DetailedCost(overrides map[string]int) ModelCost {
	return ModelCost{Detailed: overrides}
}

// Bucket holds the prices for one media kind.
type Bucket struct {
	Default int                  `json:"default"`
	Models  map[string]ModelCost `json:"models"`
}

// CostPolicy is the full pricing document. It is passed by value into the
// resolver so resolution never reads ambient global state.
type CostPolicy struct {
	Video Bucket `json:"video"`
	Image Bucket `json:"image"`
}

// Validate checks the invariant that every override table carries a default.
func (p CostPolicy) Validate() error {
	for _, bucket := range []struct {
		name string
		b    Bucket
	}{{"video", p.Video}, {"image", p.Image}} {
		for modelID, mc := range bucket.b.Models {
			if mc.Flat != nil {
				continue
			}
			if _, ok := mc.Detailed["default"]; !ok {
				return fmt.Errorf("pricing: %s model %q has no default entry", bucket.name, modelID)
			}
		}
	}
	return nil
}

// DefaultPolicy is the compiled-in fallback used when the persisted policy is
// missing or unreadable.
func DefaultPolicy() CostPolicy {
	return CostPolicy{
		Video: Bucket{
			Default: 100,
			Models: map[string]ModelCost{
				"veo3": DetailedCost(map[string]int{
					"quality": 250,
					"fast":    60,
					"frames":  80,
					"default": 250,
				}),
				"wan-2-6": DetailedCost(map[string]int{
					"720p:5s":   70,
					"720p:10s":  140,
					"720p:15s":  210,
					"1080p:5s":  105,
					"1080p:10s": 210,
					"1080p:15s": 315,
					"default":   70,
				}),
				"sora-2-pro": DetailedCost(map[string]int{
					"standard:10": 200,
					"standard:15": 300,
					"standard:25": 500,
					"high:10":     420,
					"high:15":     630,
					"high:25":     1050,
					"storyboard":  1200,
					"default":     200,
				}),
			},
		},
		Image: Bucket{
			Default: 4,
			Models: map[string]ModelCost{
				"nano-banana": DetailedCost(map[string]int{
					"2k":      8,
					"default": 4,
				}),
				"seedream": FlatCost(6),
			},
		},
	}
}
