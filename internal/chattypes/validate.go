package chattypes

import (
	"fmt"
	"strings"
)

// Validate checks that the request carries the fields OpenRouter requires
// and that numeric fields fall within the ranges OpenAI's API documents.
// It never inspects Model against a known-models list — that is the
// upstream's job, not the wire format's.
func (r *ChatCompletionRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "messages must contain at least one message"}
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return &ValidationError{Field: "temperature", Message: "temperature must be between 0.0 and 2.0"}
	}
	if r.TopP != nil && (*r.TopP < 0.0 || *r.TopP > 1.0) {
		return &ValidationError{Field: "top_p", Message: "top_p must be between 0.0 and 1.0"}
	}
	if r.MaxTokens != nil && *r.MaxTokens < 1 {
		return &ValidationError{Field: "max_tokens", Message: "max_tokens must be greater than 0"}
	}
	if r.N != nil && *r.N < 1 {
		return &ValidationError{Field: "n", Message: "n must be greater than 0"}
	}
	if len(r.Stop) > 4 {
		return &ValidationError{Field: "stop", Message: "stop sequences must not exceed 4"}
	}
	if r.PresencePenalty != nil && (*r.PresencePenalty < -2.0 || *r.PresencePenalty > 2.0) {
		return &ValidationError{Field: "presence_penalty", Message: "presence_penalty must be between -2.0 and 2.0"}
	}
	if r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2.0 || *r.FrequencyPenalty > 2.0) {
		return &ValidationError{Field: "frequency_penalty", Message: "frequency_penalty must be between -2.0 and 2.0"}
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Message: "message role is required"}
		}
		if len(msg.ToolCalls) > 0 {
			continue
		}
		switch v := msg.Content.(type) {
		case nil:
			return &ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Message: "message content is required when no tool_calls present"}
		case string:
			if strings.TrimSpace(v) == "" {
				return &ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Message: "message content must not be blank"}
			}
		case []interface{}:
			if len(v) == 0 {
				return &ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Message: "message content array must not be empty"}
			}
		}
	}
	return nil
}

// ContentParts returns msg.Content as a []ContentPart when it is a
// multimodal array, or ok=false when it's a plain string (or absent).
// Content arrives from encoding/json as []interface{} of map[string]interface{},
// so each part is decoded by type-asserting its known fields one by one;
// elements that are not JSON objects are skipped.
func (m Message) ContentParts() (parts []ContentPart, ok bool) {
	raw, isSlice := m.Content.([]interface{})
	if !isSlice {
		return nil, false
	}
	for _, item := range raw {
		obj, isMap := item.(map[string]interface{})
		if !isMap {
			continue
		}
		part := ContentPart{}
		if t, ok := obj["type"].(string); ok {
			part.Type = t
		}
		if t, ok := obj["text"].(string); ok {
			part.Text = t
		}
		if u := decodeURLRef(obj["image_url"]); u != nil {
			part.ImageURL = u
		}
		if u := decodeURLRef(obj["video_url"]); u != nil {
			part.VideoURL = u
		}
		if a, ok := obj["input_audio"].(map[string]interface{}); ok {
			ref := &AudioRef{}
			if d, ok := a["data"].(string); ok {
				ref.Data = d
			}
			if f, ok := a["format"].(string); ok {
				ref.Format = f
			}
			part.InputAudio = ref
		}
		if f, ok := obj["file"].(map[string]interface{}); ok {
			ref := &FileRef{}
			if v, ok := f["file_data"].(string); ok {
				ref.FileData = v
			}
			if v, ok := f["file_id"].(string); ok {
				ref.FileID = v
			}
			if v, ok := f["filename"].(string); ok {
				ref.Filename = v
			}
			part.File = ref
		}
		parts = append(parts, part)
	}
	return parts, true
}

func decodeURLRef(v interface{}) *URLRef {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	url, _ := obj["url"].(string)
	return &URLRef{URL: url}
}
