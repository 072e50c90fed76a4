package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexidoc/legal-doc-analyzer/api/model"
)

// respondOK writes a success envelope with the request trace ID.
func respondOK(c *gin.Context, data interface{}) {
	resp := model.NewSuccessResponse(data)
	resp.TraceID = c.GetString("TraceID")
	c.JSON(http.StatusOK, resp)
}
