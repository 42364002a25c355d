// Package handlers holds the gin.HandlerFuncs for every proxy servlet named
// in spec.md §4.H: health, models, engines, and the chat-completions
// pipeline.
package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/chattypes"
)

// writeError sends an OpenAI-shaped error body with the given status.
func writeError(c *gin.Context, status int, body *chattypes.ErrorResponse) {
	c.JSON(status, body)
}

// fieldOf extracts the offending field name from a chattypes.ValidationError,
// or "" for any other error shape.
func fieldOf(err error) string {
	var ve *chattypes.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

// errorTypeForStatus maps a raw upstream HTTP status to the OpenAI error
// taxonomy's "type" field, per spec.md §7.
func errorTypeForStatus(status int) string {
	switch status {
	case 401:
		return chattypes.ErrorTypeInvalidAPIKey
	case 403:
		return chattypes.ErrorTypePermissionDenied
	case 404:
		return chattypes.ErrorTypeNotFound
	case 429:
		return chattypes.ErrorTypeRateLimitExceeded
	default:
		if status >= 500 {
			return chattypes.ErrorTypeBadGateway
		}
		return chattypes.ErrorTypeInvalidRequest
	}
}

// upstreamErrorEnvelope surfaces an upstream non-2xx body verbatim when it
// already carries an OpenAI-shaped "error" key (OpenRouter mirrors OpenAI's
// error schema), or wraps the raw body as a message when it doesn't.
func upstreamErrorEnvelope(status int, body []byte) json.RawMessage {
	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) == nil {
		if _, ok := probe["error"]; ok {
			return json.RawMessage(body)
		}
	}
	wrapped := chattypes.NewErrorResponse(string(body), errorTypeForStatus(status), "", "")
	encoded, err := json.Marshal(wrapped)
	if err != nil {
		return json.RawMessage(`{"error":{"message":"upstream error","type":"bad_gateway"}}`)
	}
	return encoded
}

// writeUpstreamError mirrors a non-2xx upstream response's status and body
// into the client response, per spec.md §4.H step 5.
func writeUpstreamError(c *gin.Context, status int, body []byte) {
	c.Data(status, "application/json; charset=utf-8", upstreamErrorEnvelope(status, body))
}
