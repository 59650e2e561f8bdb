// Package routes registers the admin API's HTTP surface against an Echo
// instance, grounded on the teacher's one-file-per-resource route grouping.
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/rulechain/cmd/ruleengine/container"
	"github.com/lyzr/rulechain/cmd/ruleengine/handlers"
)

// RegisterChainRoutes registers chain CRUD, patch, and process routes.
func RegisterChainRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewChainHandler(c)

	chains := e.Group("/v1/chains")
	chains.POST("", h.LoadChain)
	chains.GET("", h.ListChains)
	chains.GET("/:id", h.GetChain)
	chains.DELETE("/:id", h.RemoveChain)
	chains.PATCH("/:id", h.PatchChain)
	chains.POST("/:id/process", h.Process)
}

// RegisterComponentRoutes registers the registered-node-types listing route.
func RegisterComponentRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewComponentsHandler(c)
	e.GET("/v1/components", h.List)
}
