package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/hostelbites/internal/domain/models"
	"github.com/mamadbah2/hostelbites/internal/service/attendance"
	"github.com/mamadbah2/hostelbites/internal/service/reporting"
)

const (
	csvFilename    = "hostelbites_attendance.csv"
	backupFilename = "hostelbites_backup.json"
)

// Ledger describes the attendance operations the HTTP layer can perform.
type Ledger interface {
	Status(ctx context.Context) (models.StatusView, error)
	Vote(ctx context.Context, name string, meal models.MealType) (models.StatusView, error)
	ResetMeal(ctx context.Context, meal models.MealType) (models.StatusView, error)
	ResetAll(ctx context.Context) (models.StatusView, error)
	Roster(ctx context.Context) ([]string, error)
	AddName(ctx context.Context, name string) ([]string, error)
	RenameName(ctx context.Context, oldName, newName string) ([]string, error)
	DeleteName(ctx context.Context, name string) ([]string, error)
	ExportCSV(ctx context.Context) (string, error)
	Backup(ctx context.Context) (models.Backup, error)
}

// SheetPublisher pushes attendance to a spreadsheet.
type SheetPublisher interface {
	Enabled() bool
	Publish(ctx context.Context) (int, error)
}

// AttendanceHandler exposes the ledger over HTTP.
type AttendanceHandler struct {
	ledger    Ledger
	publisher SheetPublisher
	logger    *zap.Logger
}

// NewAttendanceHandler constructs the HTTP handler adapter. publisher may be nil.
func NewAttendanceHandler(ledger Ledger, publisher SheetPublisher, logger *zap.Logger) *AttendanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{ledger: ledger, publisher: publisher, logger: logger}
}

// Status returns who has and hasn't eaten each meal.
func (h *AttendanceHandler) Status(c *gin.Context) {
	status, err := h.ledger.Status(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to get status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Vote marks a resident as having eaten a meal.
func (h *AttendanceHandler) Vote(c *gin.Context) {
	var req models.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid vote payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote data"})
		return
	}

	meal, err := models.ParseMealType(req.Meal)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote data"})
		return
	}

	status, err := h.ledger.Vote(c.Request.Context(), req.Name, meal)
	if err != nil {
		h.writeError(c, err, "Failed to vote")
		return
	}
	c.JSON(http.StatusOK, status)
}

// ResetMeal clears a single meal.
func (h *AttendanceHandler) ResetMeal(c *gin.Context) {
	meal, err := models.ParseMealType(c.Param("meal"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal type"})
		return
	}

	status, err := h.ledger.ResetMeal(c.Request.Context(), meal)
	if err != nil {
		h.writeError(c, err, "Failed to reset meal")
		return
	}
	c.JSON(http.StatusOK, status)
}

// ResetAll clears every meal.
func (h *AttendanceHandler) ResetAll(c *gin.Context) {
	status, err := h.ledger.ResetAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to reset all meals")
		return
	}
	c.JSON(http.StatusOK, status)
}

// ExportCSV downloads the attendance grid.
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	csv, err := h.ledger.ExportCSV(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to export CSV")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+csvFilename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

// Backup downloads the raw roster and ledger documents.
func (h *AttendanceHandler) Backup(c *gin.Context) {
	backup, err := h.ledger.Backup(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to backup files")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+backupFilename)
	c.JSON(http.StatusOK, backup)
}

// PublishSheet pushes the attendance grid to the configured spreadsheet.
func (h *AttendanceHandler) PublishSheet(c *gin.Context) {
	if h.publisher == nil || !h.publisher.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sheet publishing is not configured"})
		return
	}

	rows, err := h.publisher.Publish(c.Request.Context())
	if err != nil {
		if errors.Is(err, attendance.ErrPersistence) {
			h.writeError(c, err, "Failed to publish sheet")
			return
		}
		h.logger.Error("failed publishing sheet", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to publish sheet"})
		return
	}

	c.JSON(http.StatusOK, models.PublishResponse{PublishedRows: rows})
}

// writeError maps ledger errors onto HTTP status codes. Client errors carry
// the ledger message; everything else is logged and reported with fallback.
func (h *AttendanceHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, attendance.ErrDuplicateVote):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidMeal),
		errors.Is(err, attendance.ErrEmptyName),
		errors.Is(err, attendance.ErrDuplicateName),
		errors.Is(err, attendance.ErrNameNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, reporting.ErrPublisherDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
