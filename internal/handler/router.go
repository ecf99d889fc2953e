package handler

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Events     *EventHandler
	Guests     *GuestHandler
	Checkin    *CheckinHandler
	Sessions   *ScannerSessionHandler
	Invitation *InvitationHandler
	Export     *ExportHandler
}

// NewRouter mounts the middleware chain and every API route under /api behind the authenticator.
func NewRouter(auth *Authenticator, corsOrigins []string, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CORS(corsOrigins))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", auth.VerifyJWT())
	h.Events.RegisterRoutes(api)
	h.Guests.RegisterRoutes(api)
	h.Checkin.RegisterRoutes(api)
	h.Sessions.RegisterRoutes(api)
	h.Invitation.RegisterRoutes(api)
	h.Export.RegisterRoutes(api)

	return router
}
