package api

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/lexidoc/legal-doc-analyzer/api/handler"
	"github.com/lexidoc/legal-doc-analyzer/api/middleware"
	"github.com/lexidoc/legal-doc-analyzer/api/model"
)

// tagListPattern matches comma-separated tags like "contract,nda".
var tagListPattern = regexp.MustCompile(`^[\w-]+(,[\w-]+)*$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("taglist", func(fl validator.FieldLevel) bool {
			return tagListPattern.MatchString(fl.Field().String())
		})
	}
}

// SetupRouter wires all HTTP routes and middleware.
func SetupRouter(
	documentHandler *handler.DocumentHandler,
	qaHandler *handler.QAHandler,
	analysisHandler *handler.AnalysisHandler,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	apiGroup := router.Group("/api")
	{
		documents := apiGroup.Group("/documents")
		{
			documents.POST("", documentHandler.UploadDocument)
			documents.GET("", documentHandler.ListDocuments)
			documents.DELETE("", documentHandler.ClearDocuments)
			documents.GET("/:id/status", documentHandler.GetDocumentStatus)
			documents.GET("/:id/clauses", analysisHandler.ExtractClauses)
			documents.GET("/:id/summary", analysisHandler.Summarize)
			documents.DELETE("/:id", documentHandler.DeleteDocument)
		}

		apiGroup.POST("/qa", qaHandler.AnswerQuestion)

		apiGroup.GET("/health", func(c *gin.Context) {
			resp := model.NewSuccessResponse(gin.H{"status": "ok"})
			resp.TraceID = c.GetString("TraceID")
			c.JSON(http.StatusOK, resp)
		})
	}

	return router
}

// Cors allows cross-origin requests from browser clients.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trace-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
