package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/config"
	"github.com/capsulemail/capsuled/internal/http/middleware"
	"github.com/capsulemail/capsuled/internal/metrics"
	"github.com/capsulemail/capsuled/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	usersRepo := repository.NewUsersRepository(mysqlDB)
	capsulesRepo := repository.NewCapsulesRepository(mysqlDB)

	// repos (ClickHouse)
	deliveryLog := repository.NewDeliveryLogRepository(clickhouseDB)

	// blob store
	blobs := blob.NewRedisStore(rds)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(usersRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:      rds,
		DefaultRPS: cfg.RateLimit.RPS,
		KeyPrefix:  "rl:user:",
		Window:     time.Second,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/capsules", createCapsuleHandler(capsulesRepo, blobs, cfg.Blob.KeyPrefix, cfg.Blob.InlineMax))
	v1.GET("/capsules", listCapsulesHandler(capsulesRepo))
	v1.GET("/capsules/:id", getCapsuleHandler(capsulesRepo))
	v1.PUT("/capsules/:id", updateCapsuleHandler(capsulesRepo, blobs, cfg.Blob.KeyPrefix, cfg.Blob.InlineMax))
	v1.DELETE("/capsules/:id", deleteCapsuleHandler(capsulesRepo, blobs))
	v1.GET("/reports/deliveries", listDeliveriesHandler(deliveryLog))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
