package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/rulechain/cmd/ruleengine/container"
)

// ComponentsHandler exposes the registered node types.
type ComponentsHandler struct {
	c *container.Container
}

// NewComponentsHandler builds a ComponentsHandler over the container's engine.
func NewComponentsHandler(c *container.Container) *ComponentsHandler {
	return &ComponentsHandler{c: c}
}

// List handles GET /v1/components.
func (h *ComponentsHandler) List(c echo.Context) error {
	descriptors := h.c.Engine.RegisteredComponents()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"components": descriptors,
		"count":      len(descriptors),
	})
}
