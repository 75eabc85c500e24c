// Package webapi assembles the HTTP surface of the wallet.
package webapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/p2pwallet/wallet/pkg/config"
	transfersvc "github.com/p2pwallet/wallet/pkg/service/transfer"
	accountapi "github.com/p2pwallet/wallet/webapi/account"
	"github.com/p2pwallet/wallet/webapi/common"
	transferapi "github.com/p2pwallet/wallet/webapi/transfer"
)

// New builds the Fiber application with all middleware and routes.
func New(svc *transfersvc.Service, cfg *config.AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return common.ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})

	app.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ErrorResponseJSON(c, fiber.StatusTooManyRequests,
				"Too Many Requests", "Rate limit exceeded")
		},
	}))
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	transferapi.Routes(app, svc, cfg)
	accountapi.Routes(app, svc, cfg)

	return app
}
