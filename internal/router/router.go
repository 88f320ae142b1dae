package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/timerd/internal/handler"
	"pomodoro/timerd/internal/middleware"
)

type Options struct {
	CommandHandler *handler.CommandHandler
	TimerHandler   *handler.TimerHandler
	EventsHandler  *handler.EventsHandler
	// Observers reports connected event streams on /health when set.
	Observers ObserverCounter
	// Tokens enables bearer auth on /api when set.
	Tokens      middleware.TokenParser
	CORSOrigins []string
}

type ObserverCounter interface {
	Count() int
}

func New(opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Logger(), gin.Recovery(), middleware.CORS(opts.CORSOrigins))

	engine.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if opts.Observers != nil {
			body["observers"] = opts.Observers.Count()
		}
		c.JSON(http.StatusOK, body)
	})

	api := engine.Group("/api")
	if opts.Tokens != nil {
		api.Use(middleware.Auth(opts.Tokens))
	}
	api.POST("/commands", opts.CommandHandler.Dispatch)
	api.GET("/timer/state", opts.TimerHandler.GetState)
	api.GET("/history", opts.TimerHandler.GetHistory)
	api.GET("/stats/today", opts.TimerHandler.GetToday)
	api.GET("/events", opts.EventsHandler.Stream)

	return engine
}
