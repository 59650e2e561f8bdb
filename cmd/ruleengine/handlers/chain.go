package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/rulechain/cmd/ruleengine/container"
	"github.com/lyzr/rulechain/engine/chain"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// ChainHandler adapts the engine's chain operations to HTTP.
type ChainHandler struct {
	c *container.Container
}

// NewChainHandler builds a ChainHandler over the container's engine.
func NewChainHandler(c *container.Container) *ChainHandler {
	return &ChainHandler{c: c}
}

// LoadChain handles POST /v1/chains.
func (h *ChainHandler) LoadChain(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "failed to read request body"})
	}

	id, err := h.c.Engine.LoadChain(body)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":      id,
		"version": h.c.Engine.CurrentVersion(),
	})
}

// GetChain handles GET /v1/chains/:id.
func (h *ChainHandler) GetChain(c echo.Context) error {
	id := c.Param("id")

	loaded, ok := h.c.Engine.GetChain(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]interface{}{"error": "chain not found"})
	}

	return c.JSON(http.StatusOK, h.buildChainResponse(loaded))
}

// ListChains handles GET /v1/chains.
func (h *ChainHandler) ListChains(c echo.Context) error {
	chains := h.c.Engine.ListChains()

	out := make([]map[string]interface{}, 0, len(chains))
	for _, loaded := range chains {
		out = append(out, h.buildChainResponse(loaded))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"chains": out,
		"count":  len(out),
	})
}

// RemoveChain handles DELETE /v1/chains/:id.
func (h *ChainHandler) RemoveChain(c echo.Context) error {
	id := c.Param("id")

	if err := h.c.Engine.RemoveChain(id); err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "chain removed",
		"id":      id,
	})
}

// PatchChain handles PATCH /v1/chains/:id.
func (h *ChainHandler) PatchChain(c echo.Context) error {
	id := c.Param("id")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "failed to read request body"})
	}

	patched, err := h.c.Engine.PatchChain(id, body)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, h.buildChainResponse(patched))
}

// Process handles POST /v1/chains/:id/process.
func (h *ChainHandler) Process(c echo.Context) error {
	id := c.Param("id")

	var inbound struct {
		Type string          `json:"msg_type"`
		Data json.RawMessage `json:"data"`
	}
	if err := c.Bind(&inbound); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
	}

	msg := message.New(inbound.Type, inbound.Data)

	result, err := h.c.Engine.Process(c.Request().Context(), id, msg)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *ChainHandler) buildChainResponse(c chain.Chain) map[string]interface{} {
	return map[string]interface{}{
		"id":          c.ID,
		"name":        c.Name,
		"root":        c.Root,
		"nodes":       c.Nodes,
		"connections": c.Connections,
		"metadata":    c.Metadata,
	}
}

func (h *ChainHandler) errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	var re *ruleerr.RuleError
	if errors.As(err, &re) {
		switch re.Kind {
		case ruleerr.KindNotFound:
			status = http.StatusNotFound
		case ruleerr.KindConfigError, ruleerr.KindCircularDependency, ruleerr.KindHandlerNotFound:
			status = http.StatusBadRequest
		}
	}

	return c.JSON(status, map[string]interface{}{"error": err.Error()})
}
