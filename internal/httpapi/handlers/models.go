package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/modelcache"
	"github.com/DimazzzZ/openrouter-proxy-core/internal/translate"
)

// ModelsHandler serves the model-catalog-backed listing endpoints:
// /v1/models (and its unprefixed alias) and the legacy /v1/engines shape.
type ModelsHandler struct {
	cache *modelcache.Cache
}

// NewModelsHandler builds a ModelsHandler backed by cache.
func NewModelsHandler(cache *modelcache.Cache) *ModelsHandler {
	return &ModelsHandler{cache: cache}
}

// List implements GET /v1/models and /models.
func (h *ModelsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, translate.ModelsList(h.resolve(c)))
}

// Engines implements GET /v1/engines and /engines: the same catalog
// content as List, wrapped in the legacy engine shape.
func (h *ModelsHandler) Engines(c *gin.Context) {
	c.JSON(http.StatusOK, translate.EnginesList(h.resolve(c)))
}

// resolve applies the mode/search/provider/limit query params spec.md
// §4.H names against the cache.
func (h *ModelsHandler) resolve(c *gin.Context) []entity.ModelInfo {
	ctx := c.Request.Context()

	var models []entity.ModelInfo
	switch c.DefaultQuery("mode", "all") {
	case "curated":
		for _, id := range h.cache.Curated() {
			if m, ok := h.cache.ByID(id); ok {
				models = append(models, m)
			} else {
				models = append(models, entity.ModelInfo{ID: id})
			}
		}
	case "search":
		models = h.cache.Search(ctx, c.Query("search"))
	default:
		models = h.cache.All(ctx)
	}

	if provider := c.Query("provider"); provider != "" {
		models = filterByProvider(models, provider)
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n >= 0 && n < len(models) {
			models = models[:n]
		}
	}
	return models
}

func filterByProvider(models []entity.ModelInfo, slug string) []entity.ModelInfo {
	out := make([]entity.ModelInfo, 0, len(models))
	for _, m := range models {
		if m.ProviderSlug() == slug {
			out = append(out, m)
		}
	}
	return out
}
