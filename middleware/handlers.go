package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatrouter/logger"
	"chatrouter/tools/errs"
)

// RequestLogger logs method, path, status and latency for every request
// that passes through a MiddlewareManager's chain.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Recovery converts a panic inside a later handler into a logged
// errs.CodeError and a 500 response, instead of letting gin's own bare
// recover (or none at all, for engines built with gin.New()) take it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ce := errs.ErrPanic(r)
				logger.Errorf("recovered panic handling %s %s: %v", c.Request.Method, c.Request.URL.Path, ce)
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{"code": errs.CodeInternal, "msg": fmt.Sprint(ce)})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
