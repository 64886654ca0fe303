package api

import "github.com/gin-gonic/gin"

// NewRouter wires the HTTP surface.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware())

	r.GET("/health", h.Health)
	v1 := r.Group("/v1")
	{
		v1.POST("/completions", h.Completion)
		v1.POST("/speech", h.Speech)
		v1.GET("/requests/:id", h.GetRequest)
	}
	return r
}
