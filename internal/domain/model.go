package domain

import "time"

// InputContract states which inputs a variant requires and their bounds.
type InputContract struct {
	RequiresPrompt       bool
	MaxPromptLen         int
	AllowsNegativePrompt bool
	MinImages            int
	MaxImages            int
	MaxImageBytes        int64
	AcceptedImageMIME    []string
	RequiresContinuation bool
}

// VariantDescriptor describes one generation mode of a model, including the
// concrete provider-side model string and the legal parameter ranges.
type VariantDescriptor struct {
	ID            string
	ProviderModel string
	Durations     []string // ordered, first entry is the default
	Resolutions   []string // ordered, first entry is the default
	AspectRatios  []string // optional
	Inputs        InputContract

	// Poll budget for jobs on this variant. Long-form variants need budgets
	// of minutes to tens of minutes, short clips far less.
	PollInterval    time.Duration
	PollMaxAttempts int
}

// SupportsDuration reports whether the duration is legal for this variant.
func (v VariantDescriptor) SupportsDuration(d string) bool {
	return containsString(v.Durations, d)
}

// SupportsResolution reports whether the resolution is legal for this variant.
func (v VariantDescriptor) SupportsResolution(r string) bool {
	return containsString(v.Resolutions, r)
}

// SupportsAspectRatio reports whether the aspect ratio is legal. Variants
// without a declared vocabulary accept any value.
func (v VariantDescriptor) SupportsAspectRatio(a string) bool {
	if len(v.AspectRatios) == 0 {
		return true
	}
	return containsString(v.AspectRatios, a)
}

// MediaKind selects the pricing bucket and artifact handling for a model.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// ModelDescriptor describes a provider model and its variants. Descriptors are
// immutable and loaded at process start.
type ModelDescriptor struct {
	ID          string
	DisplayName string
	Provider    string
	Kind        MediaKind
	Variants    []VariantDescriptor
}

// Variant returns the variant with the given id, or nil when unknown.
func (m *ModelDescriptor) Variant(variantID string) *VariantDescriptor {
	if m == nil {
		return nil
	}
	for i := range m.Variants {
		if m.Variants[i].ID == variantID {
			return &m.Variants[i]
		}
	}
	return nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
