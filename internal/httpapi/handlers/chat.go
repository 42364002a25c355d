package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/chattypes"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/health"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/modelcache"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/multimodal"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/settings"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/translate"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/upstream"
)

// ChatHandler implements the OpenAI-compatible POST /v1/chat/completions
// pipeline from spec.md §4.H: parse, validate, check multimodal
// capabilities, translate, and make exactly one upstream call — either
// returning a single JSON response or handing the connection to the SSE
// relay for streaming.
type ChatHandler struct {
	client   *upstream.Client
	cache    *modelcache.Cache
	settings *settings.Settings
	tracker  *health.Tracker
	logger   *zap.Logger
}

// NewChatHandler builds a ChatHandler wired to its collaborators.
func NewChatHandler(client *upstream.Client, cache *modelcache.Cache, s *settings.Settings, tracker *health.Tracker, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{client: client, cache: cache, settings: s, tracker: tracker, logger: logger}
}

// Complete implements POST /v1/chat/completions and /chat/completions.
func (h *ChatHandler) Complete(c *gin.Context) {
	var req chattypes.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, chattypes.NewInvalidRequestError(err.Error(), "", chattypes.CodeInvalidJSON))
		return
	}

	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, chattypes.NewInvalidRequestError(err.Error(), fieldOf(err), chattypes.CodeInvalidValue))
		return
	}

	if err := multimodal.Validate(&req, h.cache.ByID, h.logger); err != nil {
		writeError(c, http.StatusBadRequest, chattypes.NewInvalidRequestError(err.Error(), "messages", chattypes.CodeModelNotMultimodal))
		return
	}

	snap := h.settings.Snapshot()
	if snap.ApiKey == "" {
		writeError(c, http.StatusUnauthorized, chattypes.NewInvalidAPIKeyError(
			"no OpenRouter API key configured; complete setup before sending requests"))
		return
	}

	body, err := translate.ToUpstream(&req, translate.RequestOptions{DefaultMaxTokens: snap.DefaultMaxTokens})
	if err != nil {
		writeError(c, http.StatusInternalServerError, chattypes.NewServerError("translating request: "+err.Error()))
		return
	}

	if req.Stream {
		h.completeStream(c, snap.ApiKey, body)
		return
	}
	h.completeNonStream(c, snap.ApiKey, body)
}

// completeNonStream performs the single unary upstream call and translates
// the response back to OpenAI shape, or surfaces upstream's error verbatim.
func (h *ChatHandler) completeNonStream(c *gin.Context, apiKey string, body []byte) {
	resp, err := h.client.ChatCompletion(c.Request.Context(), apiKey, body)
	if err != nil {
		h.tracker.RecordFailure()
		writeError(c, http.StatusGatewayTimeout, chattypes.NewGatewayTimeoutError("upstream request failed: "+err.Error()))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.tracker.RecordFailure()
		writeError(c, http.StatusBadGateway, chattypes.NewBadGatewayError("reading upstream response: "+err.Error()))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.tracker.RecordFailure()
		writeUpstreamError(c, resp.StatusCode, respBody)
		return
	}

	h.tracker.RecordSuccess()
	translated, err := translate.FromUpstream(respBody)
	if err != nil {
		writeError(c, http.StatusInternalServerError, chattypes.NewServerError("translating response: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, translated)
}

// completeStream opens the single upstream streaming call and relays it
// verbatim to the client via upstream.RelaySSE, per spec.md §4.I.
func (h *ChatHandler) completeStream(c *gin.Context, apiKey string, body []byte) {
	resp, err := h.client.ChatCompletion(c.Request.Context(), apiKey, body)
	if err != nil {
		h.tracker.RecordFailure()
		writeError(c, http.StatusGatewayTimeout, chattypes.NewGatewayTimeoutError("upstream request failed: "+err.Error()))
		return
	}
	defer resp.Body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.tracker.RecordFailure()
		errBody, _ := io.ReadAll(resp.Body)
		writeSSEError(c.Writer, resp.StatusCode, errBody)
		return
	}

	h.tracker.RecordSuccess()
	cancel := make(chan struct{})
	go func() {
		<-c.Request.Context().Done()
		close(cancel)
	}()
	if err := upstream.RelaySSE(cancel, resp.Body, c.Writer, c.Writer); err != nil {
		h.logger.Warn("chat: SSE relay ended with error", zap.Error(err))
	}
}

// writeSSEError emits the single terminal error event §4.I requires when
// upstream fails before the stream starts, followed by [DONE].
func writeSSEError(w io.Writer, status int, body []byte) {
	envelope := upstreamErrorEnvelope(status, body)
	fmt.Fprintf(w, "data: %s\n\n", envelope)
	io.WriteString(w, "data: [DONE]\n\n")
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
}
