package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/middleware"
	"llmpedia-backend/models"
	"llmpedia-backend/utils"
)

// Answerer is the query pipeline as the HTTP layer sees it.
type Answerer interface {
	Answer(ctx context.Context, question, collection string) (*rag.Answer, error)
	Registry() *rag.Registry
}

func SetupChatRoutes(router gin.IRouter, maestro Answerer, defaultCollection string) {
	chat := router.Group("/chat")

	chat.POST("/ask", func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input",
				"Invalid request data", gin.H{"error": err.Error()})
			return
		}

		collection := req.Collection
		if collection == "" {
			collection = defaultCollection
		}

		answer, err := maestro.Answer(c.Request.Context(), req.Question, collection)
		if err != nil {
			respondWithQueryError(c, maestro.Registry(), collection, err)
			return
		}

		c.JSON(http.StatusOK, models.AskResponse{
			Answer:        answer.Linked,
			Raw:           answer.Raw,
			References:    nonNil(answer.References),
			Collection:    answer.Collection,
			PromptVersion: answer.PromptVersion,
			Cached:        answer.Cached,
			RequestID:     middleware.GetRequestID(c),
		})
	})

	chat.GET("/collections", func(c *gin.Context) {
		specs := maestro.Registry().Specs()
		out := make([]models.CollectionInfo, 0, len(specs))
		for _, s := range specs {
			out = append(out, models.CollectionInfo{
				Name:       s.Name,
				Collection: s.Collection,
				Provider:   string(s.Provider),
				Metric:     string(s.Metric),
				Dimension:  s.Dimension,
				Default:    s.Name == defaultCollection,
			})
		}
		c.JSON(http.StatusOK, gin.H{"collections": out})
	})
}

// respondWithQueryError maps pipeline errors to HTTP: caller mistakes are
// 400, a failed stage is 502 (504 when it timed out).
func respondWithQueryError(c *gin.Context, registry *rag.Registry, collection string, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		utils.RespondWithBadRequest(c, "Question must not be empty", nil)
	case errors.Is(err, rag.ErrUnknownCollection):
		names := make([]string, 0, registry.Len())
		for _, s := range registry.Specs() {
			names = append(names, s.Name)
		}
		utils.RespondWithError(c, http.StatusBadRequest, "unknown_collection",
			"Unknown collection", gin.H{"collection": collection, "available": names})
	case errors.Is(err, rag.ErrQueryFailed):
		var qerr *rag.QueryError
		stage := ""
		if errors.As(err, &qerr) {
			stage = string(qerr.Stage)
		}
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		utils.RespondWithError(c, status, "query_failed",
			"The maestro could not answer right now. Please try again.", gin.H{"stage": stage})
	default:
		logger.Error("Unexpected query error", "collection", collection, "error", err)
		utils.RespondWithInternalError(c, "Failed to answer question", nil)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
