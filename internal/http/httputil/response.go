package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/swapmesh/route-resolver/internal/common"
)

type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"errorKind,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Error(c *gin.Context, status int, err string) {
	c.JSON(status, Response{
		Success: false,
		Error:   err,
	})
}

func BadRequest(c *gin.Context, err string) {
	Error(c, http.StatusBadRequest, err)
}

func InternalError(c *gin.Context, err string) {
	Error(c, http.StatusInternalServerError, err)
}

func NotFound(c *gin.Context, err string) {
	Error(c, http.StatusNotFound, err)
}

// ResolveFailure maps a resolution error to its HTTP status and carries
// the machine-readable kind so clients can branch without string
// matching.
func ResolveFailure(c *gin.Context, err error) {
	kind := common.KindOf(err)
	if kind == "" {
		InternalError(c, err.Error())
		return
	}
	c.JSON(common.HTTPStatusForKind(kind), Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(kind),
	})
}
