package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/models"
	"llmpedia-backend/services"
	"llmpedia-backend/utils"
)

type PaperReader interface {
	GetPaper(ctx context.Context, arxivCode string) (*models.Paper, error)
}

func SetupPaperRoutes(router gin.IRouter, papers PaperReader, linker *rag.Linker) {
	router.GET("/papers/:id", func(c *gin.Context) {
		id := c.Param("id")
		if !rag.ValidPaperID(id) {
			utils.RespondWithBadRequest(c, "Invalid arxiv id", gin.H{"id": id})
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		paper, err := papers.GetPaper(ctx, id)
		if errors.Is(err, services.ErrPaperNotFound) {
			utils.RespondWithNotFound(c, "Paper not found")
			return
		}
		if err != nil {
			logger.Error("Failed to load paper", "id", id, "error", err)
			utils.RespondWithInternalError(c, "Failed to load paper", nil)
			return
		}

		c.JSON(http.StatusOK, models.PaperResponse{
			Paper:         *paper,
			CategoryLabel: paper.CategoryLabel(),
			URL:           paper.ArxivURL(),
			ViewerURL:     linker.URL(paper.ArxivCode),
		})
	})
}
