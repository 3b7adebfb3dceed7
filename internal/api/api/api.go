package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"iscevents/cmd/middleware"
	"iscevents/internal/auth"
	"iscevents/internal/dto"
	"iscevents/internal/service"
)

type Routers struct {
	Service service.Service
	Auth    *auth.Client
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(gin.CustomRecovery(func(c *ginext.Context, _ any) {
		dto.InternalServerError(c)
	}))
	app.Use(cors.Default())

	authRequired := auth.Required(r.Auth)

	apiGroup := app.Group("/api")

	events := apiGroup.Group("/events")
	events.POST("/create", authRequired, r.Service.CreateEvent)
	events.GET("", authRequired, r.Service.GetEvents)
	events.GET("/search", authRequired, r.Service.SearchEvents)
	events.GET("/:id", authRequired, r.Service.GetEvent)
	events.POST("/:id", authRequired, r.Service.UpdateEvent)
	events.DELETE("/:id", authRequired, r.Service.DeleteEvent)
	events.POST("/:id/get-cards", r.Service.GetRequestedCards)

	apiGroup.POST("/attendee/create", r.Service.CreateAttendee)
	apiGroup.GET("/attendees/:id", r.Service.GetAttendees)

	app.NoRoute(func(c *ginext.Context) {
		dto.RouteNotFound(c)
	})

	return app
}
