package calls

import (
	"errors"
	"net/http"

	"voice-nerve/internal/dialog"
	"voice-nerve/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler exposes the operator API: initiate calls, list live ones.
type Handler struct {
	Init *Initiator
	Repo Repository
}

func (h Handler) VendorConfirmation(c *gin.Context) {
	h.initiate(c, dialog.KindVendorConfirmation)
}

func (h Handler) RiderAssignment(c *gin.Context) {
	h.initiate(c, dialog.KindRiderAssignment)
}

func (h Handler) initiate(c *gin.Context, kind dialog.CallKind) {
	log := logger.FromGin(c)

	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Kind = kind

	call, err := h.Init.Initiate(c.Request.Context(), req)
	switch {
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "call already in flight", "call": call})
	case errors.Is(err, ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live call limit reached"})
	case err != nil:
		log.Error("initiate failed", "order_id", req.OrderID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "call could not be placed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"call": call})
	}
}

func (h Handler) ListActive(c *gin.Context) {
	active, err := h.Repo.ListActive(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("list active failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(active), "calls": active})
}
