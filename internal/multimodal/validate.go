// Package multimodal checks a chat request's content parts against the
// target model's declared input modalities before it is forwarded
// upstream, so a client sending an image to a text-only model gets an
// immediate 400 instead of a confusing upstream error.
package multimodal

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/chattypes"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
)

// partTypeToModality maps a content-part "type" field to the modality
// name entity.ModelInfo.Architecture.InputModalities uses.
var partTypeToModality = map[string]string{
	"image_url":   "image",
	"input_audio": "audio",
	"video_url":   "video",
	"file":        "file",
}

// ModelLookup resolves a model id to its cached info, mirroring
// modelcache.Cache.ByID's signature without importing that package.
type ModelLookup func(id string) (entity.ModelInfo, bool)

// Validate inspects every message's content parts in req. If the target
// model is not cached, validation is skipped entirely (fail-open, logged
// at debug) since there's nothing to check against. If cached, every
// detected content modality must appear in the model's input modalities;
// the first mismatch is returned as an error naming the offending type
// and model.
func Validate(req *chattypes.ChatCompletionRequest, lookup ModelLookup, logger *zap.Logger) error {
	model, ok := lookup(req.Model)
	if !ok {
		logger.Debug("multimodal: model not cached, skipping validation", zap.String("model", req.Model))
		return nil
	}

	for _, msg := range req.Messages {
		parts, isMultimodal := msg.ContentParts()
		if !isMultimodal {
			continue
		}
		for _, part := range parts {
			modality, known := partTypeToModality[part.Type]
			if !known {
				continue
			}
			if !model.SupportsModality(modality) {
				return fmt.Errorf("model %q does not support %q content (input_modalities=%v)", req.Model, modality, model.Architecture.InputModalities)
			}
		}
	}
	return nil
}
