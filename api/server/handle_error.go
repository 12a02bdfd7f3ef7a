package server

import (
	"github.com/gin-gonic/gin"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/api/service"
)

// handleError writes the error envelope for any error a handler
// attached to the context.
func handleError() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		code, status := service.Lookup(err)
		log.Warn("request failed",
			"path", c.Request.URL.Path,
			"code", code,
			"error", err,
		)
		c.JSON(status, gin.H{
			"code": code,
			"msg":  err.Error(),
		})
	}
}
