// Package catalog holds the static capability registry: which provider models
// exist, the variants they support, and the legal parameter ranges for each.
package catalog

import (
	"time"

	"vidforge/server/internal/domain"
)

// Provider names referenced by model descriptors. Each maps to one adapter
// implementation chosen at job-submission time.
const (
	ProviderVeoAPI = "veoapi"
	ProviderMarket = "market"
)

// Registry answers pure capability lookups. Unknown ids yield nil/false so
// callers treat them as validation errors rather than crashes.
type Registry struct {
	models []domain.ModelDescriptor
	index  map[string]*domain.ModelDescriptor
}

// NewRegistry builds the registry from the compiled-in catalog.
func NewRegistry() *Registry {
	return NewRegistryFrom(builtinCatalog())
}

// NewRegistryFrom builds a registry over an explicit set of descriptors.
func NewRegistryFrom(models []domain.ModelDescriptor) *Registry {
	r := &Registry{models: models, index: make(map[string]*domain.ModelDescriptor, len(models))}
	for i := range r.models {
		r.index[r.models[i].ID] = &r.models[i]
	}
	return r
}

// Models returns every registered model descriptor.
func (r *Registry) Models() []domain.ModelDescriptor {
	return r.models
}

// DescribeModel returns the descriptor for modelID, or nil when unknown.
func (r *Registry) DescribeModel(modelID string) *domain.ModelDescriptor {
	return r.index[modelID]
}

// DescribeVariant returns the variant descriptor, or nil when either id is
// unknown.
func (r *Registry) DescribeVariant(modelID, variantID string) *domain.VariantDescriptor {
	return r.DescribeModel(modelID).Variant(variantID)
}

// IsSupported reports whether the model/variant pair exists.
func (r *Registry) IsSupported(modelID, variantID string) bool {
	return r.DescribeVariant(modelID, variantID) != nil
}

// DefaultOptions returns the default duration/resolution/aspect-ratio for a
// variant. Used by callers when the selected variant changes.
func (r *Registry) DefaultOptions(modelID, variantID string) (domain.GenerationOptions, bool) {
	v := r.DescribeVariant(modelID, variantID)
	if v == nil {
		return domain.GenerationOptions{}, false
	}
	opts := domain.GenerationOptions{}
	if len(v.Durations) > 0 {
		opts.Duration = v.Durations[0]
	}
	if len(v.Resolutions) > 0 {
		opts.Resolution = v.Resolutions[0]
	}
	if len(v.AspectRatios) > 0 {
		opts.AspectRatio = v.AspectRatios[0]
	}
	return opts, true
}

func builtinCatalog() []domain.ModelDescriptor {
	promptOnly := domain.InputContract{
		RequiresPrompt:       true,
		MaxPromptLen:         5000,
		AllowsNegativePrompt: true,
	}
	promptWithImage := domain.InputContract{
		RequiresPrompt:       true,
		MaxPromptLen:         5000,
		AllowsNegativePrompt: true,
		MinImages:            1,
		MaxImages:            1,
		MaxImageBytes:        10 << 20,
		AcceptedImageMIME:    []string{"image/png", "image/jpeg", "image/webp"},
	}

	return []domain.ModelDescriptor{
		{
			ID:          "veo3",
			DisplayName: "Veo 3",
			Provider:    ProviderVeoAPI,
			Kind:        domain.MediaVideo,
			Variants: []domain.VariantDescriptor{
				{
					ID:              "quality",
					ProviderModel:   "veo3",
					Durations:       []string{"8s"},
					Resolutions:     []string{"720p", "1080p"},
					AspectRatios:    []string{"16:9", "9:16"},
					Inputs:          promptOnly,
					PollInterval:    10 * time.Second,
					PollMaxAttempts: 60,
				},
				{
					ID:              "fast",
					ProviderModel:   "veo3_fast",
					Durations:       []string{"8s"},
					Resolutions:     []string{"720p", "1080p"},
					AspectRatios:    []string{"16:9", "9:16"},
					Inputs:          promptOnly,
					PollInterval:    5 * time.Second,
					PollMaxAttempts: 48,
				},
				{
					ID:              "frames",
					ProviderModel:   "veo3_fast_frames",
					Durations:       []string{"8s"},
					Resolutions:     []string{"720p", "1080p"},
					AspectRatios:    []string{"16:9", "9:16"},
					Inputs:          promptWithImage,
					PollInterval:    10 * time.Second,
					PollMaxAttempts: 60,
				},
			},
		},
		{
			ID:          "wan-2-6",
			DisplayName: "Wan 2.6",
			Provider:    ProviderMarket,
			Kind:        domain.MediaVideo,
			Variants: []domain.VariantDescriptor{
				{
					ID:              "text-to-video",
					ProviderModel:   "wan/v2.6-t2v",
					Durations:       []string{"5s", "10s", "15s"},
					Resolutions:     []string{"720p", "1080p"},
					AspectRatios:    []string{"16:9", "9:16", "1:1"},
					Inputs:          promptOnly,
					PollInterval:    8 * time.Second,
					PollMaxAttempts: 45,
				},
				{
					ID:              "image-to-video",
					ProviderModel:   "wan/v2.6-i2v",
					Durations:       []string{"5s", "10s", "15s"},
					Resolutions:     []string{"720p", "1080p"},
					AspectRatios:    []string{"16:9", "9:16", "1:1"},
					Inputs:          promptWithImage,
					PollInterval:    8 * time.Second,
					PollMaxAttempts: 45,
				},
			},
		},
		{
			ID:          "sora-2-pro",
			DisplayName: "Sora 2 Pro",
			Provider:    ProviderMarket,
			Kind:        domain.MediaVideo,
			Variants: []domain.VariantDescriptor{
				{
					ID:              "text-to-video",
					ProviderModel:   "sora-2-pro-t2v",
					Durations:       []string{"10", "15", "25"},
					Resolutions:     []string{"standard", "high"},
					AspectRatios:    []string{"landscape", "portrait"},
					Inputs:          promptOnly,
					PollInterval:    15 * time.Second,
					PollMaxAttempts: 80,
				},
				{
					// Storyboard runs are long-form and need a far larger
					// poll budget than single clips.
					ID:              "storyboard",
					ProviderModel:   "sora-2-pro-storyboard",
					Durations:       []string{"60", "120"},
					Resolutions:     []string{"standard", "high"},
					AspectRatios:    []string{"landscape", "portrait"},
					Inputs:          promptOnly,
					PollInterval:    30 * time.Second,
					PollMaxAttempts: 120,
				},
				{
					ID:            "extend",
					ProviderModel: "sora-2-pro-extend",
					Durations:     []string{"10", "15"},
					Resolutions:   []string{"standard", "high"},
					AspectRatios:  []string{"landscape", "portrait"},
					Inputs: domain.InputContract{
						MaxPromptLen:         5000,
						RequiresContinuation: true,
					},
					PollInterval:    15 * time.Second,
					PollMaxAttempts: 80,
				},
			},
		},
		{
			ID:          "nano-banana",
			DisplayName: "Nano Banana",
			Provider:    ProviderMarket,
			Kind:        domain.MediaImage,
			Variants: []domain.VariantDescriptor{
				{
					ID:              "text-to-image",
					ProviderModel:   "google/nano-banana",
					Resolutions:     []string{"1k", "2k"},
					AspectRatios:    []string{"1:1", "16:9", "9:16"},
					Inputs:          promptOnly,
					PollInterval:    3 * time.Second,
					PollMaxAttempts: 40,
				},
				{
					ID:              "edit",
					ProviderModel:   "google/nano-banana-edit",
					Resolutions:     []string{"1k", "2k"},
					AspectRatios:    []string{"1:1", "16:9", "9:16"},
					Inputs:          promptWithImage,
					PollInterval:    3 * time.Second,
					PollMaxAttempts: 40,
				},
			},
		},
	}
}
