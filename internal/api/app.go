package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/krishnarajt/second-thought-backend/internal/store"
)

// App exposes the dependencies handlers need.
type App interface {
	Logger() *zap.Logger
	Repo() store.Repo
}

// NewRouter builds the HTTP surface. Everything under /api requires a
// bearer API token.
func NewRouter(app App) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware())

	r.GET("/healthz", Healthz(app))

	authed := r.Group("/api", AuthMiddleware(app))
	{
		authed.PUT("/schedule/:date", PutSchedule(app))
		authed.GET("/schedule/today", GetToday(app))
		authed.GET("/schedule/:date", GetSchedule(app))
		authed.POST("/tasks/:uuid/complete", CompleteTask(app))
		authed.GET("/settings", GetSettings(app))
		authed.PUT("/settings", PutSettings(app))
		authed.POST("/telegram/link-code", CreateLinkCode(app))
		authed.POST("/telegram/unlink", Unlink(app))
	}
	return r
}
