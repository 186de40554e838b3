package server

import (
	"backend-stridehub/internal/achievement"
	"backend-stridehub/internal/auth"
	"backend-stridehub/internal/config"
	"backend-stridehub/internal/notify"
	"backend-stridehub/internal/run"
	"backend-stridehub/internal/stats"
	"backend-stridehub/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Emitter *notify.Emitter
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      db,
		Redis:   redisClient,
		Emitter: notify.NewEmitter(db, redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	statsSvc := stats.NewService()
	achievementSvc := achievement.NewService(s.DB, s.Emitter)
	runSvc := run.NewService(s.DB, statsSvc, achievementSvc, s.Emitter)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	user.RegisterRoutes(s.App.Group("/users"), user.NewService(s.DB, s.Redis), jwtMiddleware)
	run.RegisterRoutes(s.App.Group("/runs"), runSvc, jwtMiddleware)
	achievement.RegisterRoutes(s.App.Group("/achievements"), achievementSvc, jwtMiddleware)
	notify.RegisterRoutes(s.App.Group("/notifications"), s.Emitter, jwtMiddleware)
}
