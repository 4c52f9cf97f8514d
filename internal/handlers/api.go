package handlers

import (
	"net/http"
	"strconv"

	"pillsreminder/internal/auth"
	"pillsreminder/internal/models"
	"pillsreminder/internal/services"

	"github.com/gin-gonic/gin"
)

// GetSnapshot returns the reporting view for all users
func (h *Handlers) GetSnapshot(c *gin.Context) {
	snap, err := h.reporting.Snapshot(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) GetUserSnapshot(c *gin.Context) {
	snap, err := h.reporting.UserSnapshot(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetUserHistory returns the last week; ?active_only=true limits it to pills with live reminders
func (h *Handlers) GetUserHistory(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))
	rep, err := h.mgmt.History(c.Request.Context(), c.Param("user_id"), activeOnly)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handlers) GetUserArchive(c *gin.Context) {
	rep, err := h.mgmt.ArchiveList(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// GetOutstanding lists dispatched notifications nobody has answered yet
func (h *Handlers) GetOutstanding(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"outstanding": h.tracker.List()})
}

// AckRequest is the body of the acknowledge endpoint
type AckRequest struct {
	Status models.EventStatus `json:"status" binding:"required"`
}

// Acknowledge records taken/skipped for a slot on behalf of the token's subject
func (h *Handlers) Acknowledge(c *gin.Context) {
	var req AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil || slot < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be a non-negative integer"})
		return
	}

	res, err := h.ack.Acknowledge(c.Request.Context(), services.AckRequest{
		UserID:     c.Param("user_id"),
		ReminderID: c.Param("reminder_id"),
		SlotIndex:  slot,
		Status:     req.Status,
		ActorID:    auth.GetUserIDFromContext(c),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"event": res.Event, "duplicate": res.Duplicate})
}
