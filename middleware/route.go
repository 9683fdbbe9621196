package middleware

import (
	"github.com/gin-gonic/gin"

	"chatrouter/auth"
)

// RouteOpt configures whether a route is gated behind an Authenticator.
// Authenticator is only consulted when IsAuth is true; it defaults to
// auth.NoneAuthenticator (i.e. effectively unauthenticated) if left nil
// while IsAuth is true, so callers always get a defined behavior.
type RouteOpt struct {
	IsAuth        bool
	Authenticator auth.Authenticator
}

func (o RouteOpt) middleware() gin.HandlerFunc {
	a := o.Authenticator
	if a == nil {
		a = auth.NoneAuthenticator{}
	}
	return auth.GinMiddleware(a)
}

// POST registers a POST route, optionally behind opt.Authenticator.
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, opt.middleware(), handler)
	} else {
		r.POST(path, handler)
	}
}

// GET registers a GET route, optionally behind opt.Authenticator.
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, opt.middleware(), handler)
	} else {
		r.GET(path, handler)
	}
}
