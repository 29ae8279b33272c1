package pricing

// Options are the pricing dimensions of one job. Any field may be empty; the
// resolver only tries keys whose components are all present.
type Options struct {
	Variant    string
	Resolution string
	Duration   string
}

// ResolveVideoCost returns the credit price for a video job.
func ResolveVideoCost(policy CostPolicy, modelID string, opts Options) int {
	return resolve(policy.Video, modelID, opts)
}

// ResolveImageCost returns the credit price for an image job.
func ResolveImageCost(policy CostPolicy, modelID string, opts Options) int {
	return resolve(policy.Image, modelID, opts)
}

// resolve walks the override keys in strict descending specificity and
// returns the first hit. Flat entries short-circuit; a model absent from the
// bucket, or an override table missing its own default, falls back to the
// bucket-wide default.
func resolve(bucket Bucket, modelID string, opts Options) int {
	mc, ok := bucket.Models[modelID]
	if !ok {
		return bucket.Default
	}
	if mc.Flat != nil {
		return *mc.Flat
	}
	for _, key := range overrideKeys(opts) {
		if price, ok := mc.Detailed[key]; ok {
			return price
		}
	}
	if price, ok := mc.Detailed["default"]; ok {
		return price
	}
	return bucket.Default
}

func overrideKeys(opts Options) []string {
	v, r, d := opts.Variant, opts.Resolution, opts.Duration
	keys := make([]string, 0, 6)
	if v != "" && r != "" && d != "" {
		keys = append(keys, v+":"+r+":"+d)
	}
	if r != "" && d != "" {
		keys = append(keys, r+":"+d)
	}
	if v != "" && r != "" {
		keys = append(keys, v+":"+r)
	}
	if v != "" {
		keys = append(keys, v)
	}
	if r != "" {
		keys = append(keys, r)
	}
	if d != "" {
		keys = append(keys, d)
	}
	return keys
}
