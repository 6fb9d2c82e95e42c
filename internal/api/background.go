package api

import (
	"net/http"
	"strings"
	"sync"

	"opposite-clock/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ImageConfigurer is the runtime view of the image provider credential.
type ImageConfigurer interface {
	SetAccessKey(key string)
	HasAccessKey() bool
	Provider() string
}

type imageConfigResponse struct {
	HasKey   bool   `json:"has_key"`
	Provider string `json:"provider"`
}

type imageConfigRequest struct {
	AccessKey      *string `json:"access_key"`
	ClearAccessKey bool    `json:"clear_access_key"`
}

var imageConfigMu sync.Mutex

func (s *Server) imageConfigResponse() imageConfigResponse {
	if s.images == nil {
		return imageConfigResponse{Provider: "fallback"}
	}
	return imageConfigResponse{
		HasKey:   s.images.HasAccessKey(),
		Provider: s.images.Provider(),
	}
}

func (s *Server) getImageConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.imageConfigResponse())
}

func (s *Server) updateImageConfigHandler(c *gin.Context) {
	if s.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image lookups are not configured"})
		return
	}

	var req imageConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AccessKey == nil && !req.ClearAccessKey {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access_key or clear_access_key is required"})
		return
	}

	key := ""
	if !req.ClearAccessKey {
		key = strings.TrimSpace(*req.AccessKey)
	}

	imageConfigMu.Lock()
	defer imageConfigMu.Unlock()

	if err := config.SaveAccessKey(s.configPath, key); err != nil {
		log.Error().Err(err).Str("path", s.configPath).Msg("failed to save image config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save configuration: " + err.Error()})
		return
	}
	s.images.SetAccessKey(key)

	log.Info().Bool("has_key", s.images.HasAccessKey()).Msg("image provider credential updated")
	c.JSON(http.StatusOK, s.imageConfigResponse())
}
