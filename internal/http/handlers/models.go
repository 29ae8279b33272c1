package handlers

import (
	"net/http"
)

type variantResponse struct {
	ID           string   `json:"id"`
	Durations    []string `json:"durations,omitempty"`
	Resolutions  []string `json:"resolutions,omitempty"`
	AspectRatios []string `json:"aspect_ratios,omitempty"`
	NeedsImages  bool     `json:"needs_images,omitempty"`
	NeedsTask    bool     `json:"needs_continue_task,omitempty"`
}

type modelResponse struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Kind        string            `json:"kind"`
	Variants    []variantResponse `json:"variants"`
}

// ListModels exposes the capability catalog. Provider names and poll budgets
// stay internal.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	models := a.Registry.Models()
	items := make([]modelResponse, 0, len(models))
	for _, m := range models {
		mr := modelResponse{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			Kind:        string(m.Kind),
			Variants:    make([]variantResponse, 0, len(m.Variants)),
		}
		for _, v := range m.Variants {
			mr.Variants = append(mr.Variants, variantResponse{
				ID:           v.ID,
				Durations:    v.Durations,
				Resolutions:  v.Resolutions,
				AspectRatios: v.AspectRatios,
				NeedsImages:  v.Inputs.MinImages > 0,
				NeedsTask:    v.Inputs.RequiresContinuation,
			})
		}
		items = append(items, mr)
	}
	a.json(w, http.StatusOK, map[string]any{"models": items})
}
