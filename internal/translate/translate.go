// Package translate converts between the OpenAI wire shape this proxy
// accepts and the (nearly identical) shape OpenRouter expects, and back
// again for non-streaming responses. Model names are never remapped in
// either direction — OpenRouter's own "<provider>/<model>" ids pass
// straight through, per the open question this core resolved in favor of
// never guessing a translation the spec didn't ask for.
package translate

import (
	"encoding/json"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/chattypes"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
)

// RequestOptions carries the settings-derived defaults translation needs
// but must not reach into internal/settings directly (keeps this package
// a pure function of its inputs).
type RequestOptions struct {
	DefaultMaxTokens int
}

// ToUpstream builds the OpenRouter-bound JSON body for req. model is
// passed through verbatim; max_tokens falls back to opts.DefaultMaxTokens
// only when the client omitted it and the default is configured (>0).
func ToUpstream(req *chattypes.ChatCompletionRequest, opts RequestOptions) ([]byte, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   req.Stream,
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	} else if opts.DefaultMaxTokens > 0 {
		body["max_tokens"] = opts.DefaultMaxTokens
	}
	if req.FrequencyPenalty != nil {
		body["frequency_penalty"] = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		body["presence_penalty"] = *req.PresencePenalty
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
	}
	if req.ToolChoice != nil {
		body["tool_choice"] = req.ToolChoice
	}
	if req.ResponseFormat != nil {
		body["response_format"] = req.ResponseFormat
	}
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}
	if req.N != nil {
		body["n"] = *req.N
	}
	if req.User != "" {
		body["user"] = req.User
	}
	if req.Stream && req.StreamOptions != nil {
		body["stream_options"] = req.StreamOptions
	}
	return json.Marshal(body)
}

// FromUpstream decodes an OpenRouter chat-completion response and
// re-encodes it in OpenAI shape. model is whatever the upstream reported
// — never re-mapped back to the client's original string.
func FromUpstream(upstreamBody []byte) (*chattypes.ChatCompletionResponse, error) {
	var resp chattypes.ChatCompletionResponse
	if err := json.Unmarshal(upstreamBody, &resp); err != nil {
		return nil, err
	}
	if resp.Object == "" {
		resp.Object = "chat.completion"
	}
	return &resp, nil
}

// ModelsList builds the OpenAI-shaped /v1/models listing from cached
// upstream model records, trimmed to the fields OpenAI clients expect.
func ModelsList(models []entity.ModelInfo) chattypes.ModelListResponse {
	items := make([]chattypes.ModelListItem, 0, len(models))
	for _, m := range models {
		items = append(items, chattypes.ModelListItem{
			ID:         m.ID,
			Object:     "model",
			Created:    m.Created,
			OwnedBy:    m.ProviderSlug(),
			Permission: []string{},
			Root:       m.ID,
			Parent:     nil,
		})
	}
	return chattypes.ModelListResponse{Object: "list", Data: items}
}

// EnginesList builds the legacy /v1/engines response: the same cached
// records as ModelsList, wrapped in the older engine shape some OpenAI
// client libraries still probe for before falling back to /v1/models.
func EnginesList(models []entity.ModelInfo) chattypes.EngineListResponse {
	items := make([]chattypes.EngineItem, 0, len(models))
	for _, m := range models {
		items = append(items, chattypes.EngineItem{
			ID:          m.ID,
			Object:      "engine",
			Owner:       m.ProviderSlug(),
			Ready:       true,
			Permissions: []string{},
			Created:     m.Created,
		})
	}
	return chattypes.EngineListResponse{Object: "list", Data: items}
}
