package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hyemembers/vipauction/internal/auction"
	"github.com/hyemembers/vipauction/internal/config"
)

// Server is the HTTP surface over the auction engine: the public board and
// bid endpoints plus the token-guarded admin API.
type Server struct {
	app     *fiber.App
	manager *auction.Manager
	cfg     config.HTTPConfig
}

func NewServer(cfg config.HTTPConfig, manager *auction.Manager) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "VIP Auction API",
		ServerHeader: "vipauction",
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Member-ID",
	}))
	app.Use(LoggingMiddleware())

	s := &Server{
		app:     app,
		manager: manager,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api")
	api.Get("/board", s.handleBoard)
	api.Post("/auctions/:id/bids", s.handlePlaceBid)

	admin := api.Group("/admin", AdminRequired(s.cfg.AdminToken))
	admin.Get("/auctions", s.handleListAuctions)
	admin.Post("/auctions", s.handleCreateAuction)
	admin.Get("/auctions/:id", s.handleGetAuction)
	admin.Put("/auctions/:id", s.handleUpdateAuction)
	admin.Post("/auctions/:id/cancel", s.handleCancelAuction)
	admin.Post("/auctions/:id/settle", s.handleSettleAuction)
	admin.Post("/housekeep", s.handleHousekeep)
	admin.Get("/settings", s.handleGetSettings)
	admin.Put("/settings", s.handleUpdateSettings)
}

func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
