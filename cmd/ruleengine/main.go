package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/rulechain/cmd/ruleengine/container"
	"github.com/lyzr/rulechain/cmd/ruleengine/routes"
	"github.com/lyzr/rulechain/common/bootstrap"
	"github.com/lyzr/rulechain/common/server"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "ruleengine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap ruleengine: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize engine container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)
	registerRoutes(e, serviceContainer)
	startServer(e, components)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "ruleengine",
		})
	})
}

func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterChainRoutes(e, c)
	routes.RegisterComponentRoutes(e, c)
}

func startServer(e *echo.Echo, components *bootstrap.Components) {
	components.Logger.Info("starting ruleengine", "port", components.Config.Service.Port)

	srv := server.New(
		components.Config.Service.Name,
		components.Config.Service.Port,
		e,
		components.Logger,
	)

	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
