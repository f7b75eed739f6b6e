package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kartis/internal/models"
)

// GetEvent serves the public event info for the registration page.
func (h *Handlers) GetEvent(c *gin.Context) {
	info, err := h.services.Events.PublicInfo(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Register handles a public registration request. WAITLIST comes back as
// 200 like CONFIRMED; the status field tells them apart.
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.services.Registrations.Register(c.Request.Context(), c.Param("eventId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cancel handles customer self-service cancellation via the signed token.
func (h *Handlers) Cancel(c *gin.Context) {
	var req models.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reg, err := h.services.Cancellations.CancelWithToken(c.Request.Context(), req.Token, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registration_id": reg.ID,
		"status":          reg.Status,
	})
}

// CheckInList serves the roster for the shareable check-in page.
func (h *Handlers) CheckInList(c *gin.Context) {
	regs, err := h.services.CheckIns.List(c.Request.Context(), c.Param("eventId"), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

// CheckInStats serves the attendance summary.
func (h *Handlers) CheckInStats(c *gin.Context) {
	stats, err := h.services.CheckIns.Stats(c.Request.Context(), c.Param("eventId"), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CheckIn marks arrival for one confirmation code.
func (h *Handlers) CheckIn(c *gin.Context) {
	ci, err := h.services.CheckIns.CheckIn(c.Request.Context(),
		c.Param("eventId"), c.Query("token"), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ci)
}

// UndoCheckIn reverses a mistaken check-in.
func (h *Handlers) UndoCheckIn(c *gin.Context) {
	ci, err := h.services.CheckIns.Undo(c.Request.Context(),
		c.Param("eventId"), c.Query("token"), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ci)
}
