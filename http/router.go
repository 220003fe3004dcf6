// server/http/router.go
package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vinizap/memo/server/auth"
	"github.com/vinizap/memo/server/ws"
)

type RouterConfig struct {
	Checker      *auth.Checker
	Hub          *ws.Hub
	AllowOrigins string
}

// NewApp wires the REST routes, the live list websocket and the operational
// endpoints.
func (s *Server) NewApp(cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "memo-server",
		DisableStartupMessage: true,
		ErrorHandler:          s.HandleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type," + auth.TokenHeader,
	}))
	app.Use(s.logRequests)

	app.Get("/healthz", s.HandleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", auth.Middleware(cfg.Checker))
	api.Get("/memos", s.HandleListMemos)
	api.Post("/memos", s.HandleCreateMemo)
	api.Get("/memos/export", s.HandleExportMemos)
	api.Get("/memos/:id", s.HandleGetMemo)
	api.Put("/memos/:id", s.HandleUpdateMemo)
	api.Delete("/memos/:id", s.HandleDeleteMemo)

	if cfg.Hub != nil {
		app.Use("/ws", auth.Middleware(cfg.Checker), func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
			cfg.Hub.Serve(conn)
		}))
	}

	return app
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request")
	return err
}
