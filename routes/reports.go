package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llmpedia-backend/internal/logger"
	"llmpedia-backend/models"
	"llmpedia-backend/services"
	"llmpedia-backend/utils"
)

type ReportReader interface {
	GetWeeklyReport(ctx context.Context, date time.Time) (*models.WeeklyReport, error)
	LatestWeeklyReport(ctx context.Context) (*models.WeeklyReport, error)
}

// SetupReportRoutes serves GET /reports/weekly?date=YYYY-MM-DD; without a
// date the latest review is returned.
func SetupReportRoutes(router gin.IRouter, reports ReportReader) {
	router.GET("/reports/weekly", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		var (
			report *models.WeeklyReport
			err    error
		)
		if raw := c.Query("date"); raw != "" {
			date, perr := time.Parse("2006-01-02", raw)
			if perr != nil {
				utils.RespondWithBadRequest(c, "date must be YYYY-MM-DD", gin.H{"date": raw})
				return
			}
			report, err = reports.GetWeeklyReport(ctx, date)
		} else {
			report, err = reports.LatestWeeklyReport(ctx)
		}

		switch {
		case errors.Is(err, services.ErrReviewNotFound):
			utils.RespondWithNotFound(c, "No weekly review for that week")
		case errors.Is(err, services.ErrInvalidReport):
			logger.Error("Stored weekly review is malformed", "error", err)
			utils.RespondWithError(c, http.StatusUnprocessableEntity, "invalid_report",
				"Stored weekly review could not be parsed", nil)
		case err != nil:
			logger.Error("Failed to load weekly review", "error", err)
			utils.RespondWithInternalError(c, "Failed to load weekly review", nil)
		default:
			c.JSON(http.StatusOK, report)
		}
	})
}
