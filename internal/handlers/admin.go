package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kartis/internal/middleware"
	"kartis/internal/models"
)

// CreateEvent creates an event under a school.
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	event, err := h.services.Events.Create(c.Request.Context(),
		middleware.Principal(c), c.Param("schoolId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// The check-in token is returned once at creation; the admin shares it
	// with door staff out of band.
	c.JSON(http.StatusCreated, gin.H{
		"event":          event,
		"check_in_token": event.CheckInToken,
	})
}

// GetEventAdmin serves the full admin view of an event.
func (h *Handlers) GetEventAdmin(c *gin.Context) {
	event, err := h.services.Events.GetForAdmin(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// SetEventStatus opens or closes registration.
func (h *Handlers) SetEventStatus(c *gin.Context) {
	var req models.UpdateEventStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	event, err := h.services.Events.SetStatus(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// CreateTable adds a table to a table-based event.
func (h *Handlers) CreateTable(c *gin.Context) {
	var req models.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	table, err := h.services.Tables.Create(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

// ListTables serves the event's table layout.
func (h *Handlers) ListTables(c *gin.Context) {
	tables, err := h.services.Tables.List(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// UpdateTable changes table shape, order or status.
func (h *Handlers) UpdateTable(c *gin.Context) {
	var req models.UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	table, err := h.services.Tables.Update(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), c.Param("tableId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// DeleteTable removes a table unless it is reserved.
func (h *Handlers) DeleteTable(c *gin.Context) {
	err := h.services.Tables.Delete(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), c.Param("tableId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDeleteTables removes several tables, skipping reserved ones.
func (h *Handlers) BulkDeleteTables(c *gin.Context) {
	var req models.BulkDeleteTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	deleted, err := h.services.Tables.BulkDelete(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), req.TableIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ReorderTables rewrites display order.
func (h *Handlers) ReorderTables(c *gin.Context) {
	var req models.ReorderTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.services.Tables.Reorder(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), req.TableIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DuplicateTable copies a table under the next free number.
func (h *Handlers) DuplicateTable(c *gin.Context) {
	table, err := h.services.Tables.Duplicate(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"), c.Param("tableId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

// GetWaitlist serves the waitlist with table match annotations.
func (h *Handlers) GetWaitlist(c *gin.Context) {
	entries, err := h.services.Waitlist.ListWithMatches(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"waitlist": entries})
}

// AssignTable promotes a waitlisted registration onto a table.
func (h *Handlers) AssignTable(c *gin.Context) {
	var req models.AssignTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reg, err := h.services.Waitlist.Promote(c.Request.Context(),
		middleware.Principal(c), c.Param("registrationId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// AdminCancel cancels a registration regardless of the deadline.
func (h *Handlers) AdminCancel(c *gin.Context) {
	var req models.AdminCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reg, err := h.services.Cancellations.AdminCancel(c.Request.Context(),
		middleware.Principal(c), c.Param("registrationId"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registration_id": reg.ID,
		"status":          reg.Status,
	})
}

// CreateBan bans a phone number for a school.
func (h *Handlers) CreateBan(c *gin.Context) {
	var req models.CreateBanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ban, err := h.services.Bans.Create(c.Request.Context(),
		middleware.Principal(c), c.Param("schoolId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ban)
}

// ListBans serves a school's bans, active and historical.
func (h *Handlers) ListBans(c *gin.Context) {
	bans, err := h.services.Bans.List(c.Request.Context(),
		middleware.Principal(c), c.Param("schoolId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bans": bans})
}

// LiftBan deactivates a ban early.
func (h *Handlers) LiftBan(c *gin.Context) {
	err := h.services.Bans.Lift(c.Request.Context(),
		middleware.Principal(c), c.Param("schoolId"), c.Param("banId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RepairEvent replays one event's registrations and fixes drift.
func (h *Handlers) RepairEvent(c *gin.Context) {
	resp, err := h.services.Repair.RepairEvent(c.Request.Context(),
		middleware.Principal(c), c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RepairAll sweeps every event. Super admin only.
func (h *Handlers) RepairAll(c *gin.Context) {
	resp, err := h.services.Repair.RepairAll(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SearchRegistrations runs the school-scoped registration search.
func (h *Handlers) SearchRegistrations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := h.services.Registrations.Search(c.Request.Context(),
		middleware.Principal(c), c.Param("schoolId"), c.Query("q"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
