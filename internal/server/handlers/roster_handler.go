package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
)

// ListNames returns the roster in sorted order.
func (h *AttendanceHandler) ListNames(c *gin.Context) {
	names, err := h.ledger.Roster(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to get names")
		return
	}
	c.JSON(http.StatusOK, names)
}

// AddName registers a resident.
func (h *AttendanceHandler) AddName(c *gin.Context) {
	var req models.AddNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid add name payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	names, err := h.ledger.AddName(c.Request.Context(), req.Name)
	if err != nil {
		h.writeError(c, err, "Failed to add name")
		return
	}
	c.JSON(http.StatusOK, names)
}

// RenameName renames a resident and carries their votes over.
func (h *AttendanceHandler) RenameName(c *gin.Context) {
	var req models.RenameNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid rename payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "New name is required"})
		return
	}

	names, err := h.ledger.RenameName(c.Request.Context(), c.Param("oldName"), req.NewName)
	if err != nil {
		h.writeError(c, err, "Failed to update name")
		return
	}
	c.JSON(http.StatusOK, names)
}

// DeleteName removes a resident and their votes.
func (h *AttendanceHandler) DeleteName(c *gin.Context) {
	names, err := h.ledger.DeleteName(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err, "Failed to delete name")
		return
	}
	c.JSON(http.StatusOK, names)
}
