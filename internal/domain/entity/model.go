package entity

import "strings"

// ModelInfo is the cached shape of an upstream OpenRouter model record.
type ModelInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Created       int64        `json:"created"`
	Description   string       `json:"description,omitempty"`
	ContextLength int          `json:"context_length,omitempty"`
	Architecture  Architecture `json:"architecture"`
	Pricing       Pricing      `json:"pricing,omitempty"`
	TopProvider   TopProvider  `json:"top_provider,omitempty"`
	SupportedParameters []string `json:"supported_parameters,omitempty"`
}

// Architecture describes which content modalities a model accepts/produces.
type Architecture struct {
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
}

// Pricing carries upstream per-token pricing as opaque strings (OpenRouter
// reports pricing as decimal strings, not floats, to avoid rounding drift).
type Pricing struct {
	Prompt     string `json:"prompt,omitempty"`
	Completion string `json:"completion,omitempty"`
	Image      string `json:"image,omitempty"`
	Request    string `json:"request,omitempty"`
}

// TopProvider summarizes the provider OpenRouter currently routes this
// model to by default.
type TopProvider struct {
	ContextLength       int  `json:"context_length,omitempty"`
	MaxCompletionTokens int  `json:"max_completion_tokens,omitempty"`
	IsModerated         bool `json:"is_moderated,omitempty"`
}

// ProviderSlug returns the provider slug, i.e. the part of the model id
// before the first "/", or "" if the id carries no provider prefix.
func (m ModelInfo) ProviderSlug() string {
	if idx := strings.Index(m.ID, "/"); idx >= 0 {
		return m.ID[:idx]
	}
	return ""
}

// SupportsModality reports whether the model accepts the given input
// content modality (e.g. "image", "audio", "video", "file").
func (m ModelInfo) SupportsModality(modality string) bool {
	for _, mm := range m.Architecture.InputModalities {
		if mm == modality {
			return true
		}
	}
	return false
}
