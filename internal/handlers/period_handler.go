package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/period"
)

// PeriodHandler previews budget windows without touching storage.
type PeriodHandler struct{}

// NewPeriodHandler creates a new PeriodHandler.
func NewPeriodHandler() *PeriodHandler {
	return &PeriodHandler{}
}

// windowResponse is a window plus the number of days it covers.
type windowResponse struct {
	period.Window
	Days int `json:"days"`
}

// GetWindow returns the window for ?start=YYYY-MM-DD&type=monthly, moved by
// ?shift=N periods when given.
func (h *PeriodHandler) GetWindow(c *gin.Context) {
	start, err := parseDate("start", c.Query("start"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if start.IsZero() {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "start is required"))
		return
	}

	t, err := period.Parse(c.Query("type"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	shift := 0
	if v := c.Query("shift"); v != "" {
		if shift, err = strconv.Atoi(v); err != nil || shift < -120 || shift > 120 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "shift must be an integer between -120 and 120"))
			return
		}
	}

	w := period.Shift(period.NewWindow(start, t), shift)
	c.JSON(http.StatusOK, gin.H{"window": windowResponse{Window: w, Days: w.Days()}})
}
