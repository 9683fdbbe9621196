package auth

import "github.com/gin-gonic/gin"

// GinMiddleware adapts an Authenticator to a gin.HandlerFunc for the REST
// admin surface, aborting with 401 when Validate returns false.
func GinMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := map[string]string{}
		for k := range c.Request.URL.Query() {
			query[k] = c.Request.URL.Query().Get(k)
		}
		if !a.Validate(Request{Query: query, Headers: c.Request.Header}) {
			c.AbortWithStatus(401)
			return
		}
		c.Next()
	}
}
