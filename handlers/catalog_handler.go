package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/generation"
	"github.com/upb/genai-gateway/utils"
)

// modelsCreated is the fixed creation timestamp reported for every model
const modelsCreated = 1700000000

// ModelObject is one entry of the OpenAI models list
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsListResponse is the OpenAI models list
type ModelsListResponse struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ChannelsListResponse lists registered channels
type ChannelsListResponse struct {
	Object string                   `json:"object"`
	Data   []generation.ChannelInfo `json:"data"`
}

// Catalog exposes what the registry can serve
type Catalog interface {
	Models() []generation.Model
	Channels() []generation.ChannelInfo
}

// CatalogHandler serves the model and channel listings
type CatalogHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog Catalog, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// HandleModels handles GET /v1/models
func (h *CatalogHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	models := h.catalog.Models()
	data := make([]ModelObject, 0, len(models))
	for _, m := range models {
		data = append(data, ModelObject{
			ID:      m.ID,
			Object:  "model",
			Created: modelsCreated,
			OwnedBy: m.OwnedBy,
		})
	}

	if err := utils.WriteOK(w, ModelsListResponse{Object: "list", Data: data}); err != nil {
		h.logger.Error("failed to write models response", zap.Error(err))
	}
}

// HandleChannels handles GET /v1/channels
func (h *CatalogHandler) HandleChannels(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, ChannelsListResponse{Object: "list", Data: h.catalog.Channels()}); err != nil {
		h.logger.Error("failed to write channels response", zap.Error(err))
	}
}
