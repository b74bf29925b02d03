package audio

import (
	"net/http"
	"strconv"

	"voice-nerve/internal/dialog"
	"voice-nerve/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler serves cached audio to the provider's media fetcher and exposes
// the operator cache endpoints.
type Handler struct {
	Cache *Cache
}

// Serve streams one cached entry. The provider fetches Play URLs anonymously,
// so this endpoint sits outside the authenticated group.
func (h Handler) Serve(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.Cache.Lookup(id)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "audio not found"})
		return
	}

	c.Header("Content-Type", entry.MIME)
	c.Header("Content-Length", strconv.Itoa(len(entry.Data)))
	c.Header("Cache-Control", "public, max-age=3600")
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(entry.Data)
}

// ListCache reports what is resolved, for ops inspection.
func (h Handler) ListCache(c *gin.Context) {
	stats := h.Cache.Stats()
	c.JSON(http.StatusOK, gin.H{"count": len(stats), "entries": stats})
}

type preloadRequest struct {
	Languages []string `json:"languages"`
}

// Preload synthesizes the phrase library for the requested languages.
func (h Handler) Preload(c *gin.Context) {
	log := logger.FromGin(c)

	var req preloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Languages) == 0 {
		req.Languages = []string{"hi", "en"}
	}

	total := 0
	for _, lang := range req.Languages {
		n, err := h.Cache.Preload(c.Request.Context(), lang, dialog.PhraseLibrary(lang))
		if err != nil {
			log.Warn("phrase preload interrupted", "language", lang, "err", err)
			break
		}
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"loaded": total, "cached": h.Cache.Len()})
}
