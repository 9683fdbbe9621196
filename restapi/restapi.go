// Package restapi serves the minimal read-only operational surface
// named by the restApi configuration group: a health check, a per-user
// statistics snapshot, and a Prometheus scrape endpoint. It carries no
// chat business logic.
package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatrouter/auth"
	"chatrouter/global"
	"chatrouter/metrics"
	"chatrouter/middleware"
	"chatrouter/service/chat"
)

// NewEngine builds the gin.Engine serving /healthz, /stats and /metrics.
// When authenticator is non-nil and not auth.NoneAuthenticator, /stats is
// gated behind it via middleware.GET's IsAuth option.
func NewEngine(stats *chat.Statistics, authenticator auth.Authenticator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	mgr := middleware.NewManager()
	mgr.Add(middleware.Recovery())
	mgr.Add(middleware.RequestLogger())
	engine.Use(mgr.Use())

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(stats))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, global.Sucess("ok"))
	})

	requireAuth := authenticator != nil
	if _, isNone := authenticator.(auth.NoneAuthenticator); isNone {
		requireAuth = false
	}

	middleware.GET(engine.Group("/"), "stats", statsHandler(stats), middleware.RouteOpt{IsAuth: requireAuth, Authenticator: authenticator})

	return engine
}

func statsHandler(stats *chat.Statistics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uidParam := c.Query("user_id"); uidParam != "" {
			uid, err := strconv.ParseUint(uidParam, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, global.Msg{Code: http.StatusBadRequest, Msg: "invalid user_id"})
				return
			}
			snap := stats.Snapshot()
			u, ok := snap[uid]
			if !ok {
				c.JSON(http.StatusNotFound, global.Msg{Code: http.StatusNotFound, Msg: "user not found"})
				return
			}
			c.JSON(http.StatusOK, global.Sucess(u))
			return
		}
		c.JSON(http.StatusOK, global.Sucess(stats.Snapshot()))
	}
}
