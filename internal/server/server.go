package server

import (
	"errors"
	"strings"

	"github.com/nastyaeremenko/yatube/internal/auth"
	"github.com/nastyaeremenko/yatube/internal/cache"
	"github.com/nastyaeremenko/yatube/internal/config"
	"github.com/nastyaeremenko/yatube/internal/db"
	"github.com/nastyaeremenko/yatube/internal/monitoring"
	"github.com/nastyaeremenko/yatube/internal/posts"
	"github.com/nastyaeremenko/yatube/internal/storage"
	"github.com/nastyaeremenko/yatube/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       db.Querier
	Redis    *redis.Client
	Stream   *stream.Hub
	Cache    cache.Cache
	Media    storage.Store
	Metrics  *monitoring.Metrics
	Registry *prometheus.Registry

	requestLog monitoring.MessageWriter
}

type Option func(*Server)

// WithMedia replaces the default disk store for uploaded images.
func WithMedia(store storage.Store) Option { return func(s *Server) { s.Media = store } }

// WithRequestLog ships every request to w.
func WithRequestLog(w monitoring.MessageWriter) Option {
	return func(s *Server) { s.requestLog = w }
}

func WithCache(c cache.Cache) Option { return func(s *Server) { s.Cache = c } }

func NewServer(cfg config.Config, database db.Querier, redisClient *redis.Client, opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		App:      fiber.New(fiber.Config{ErrorHandler: errorHandler}),
		Cfg:      cfg,
		DB:       database,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient),
		Media:    storage.NewDisk(mediaRoot(cfg), mediaPrefix(cfg)),
		Metrics:  monitoring.NewMetrics(registry),
		Registry: registry,
	}
	if redisClient != nil {
		s.Cache = cache.NewRedis(redisClient, "")
	} else {
		s.Cache = cache.NewMemory()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.App.Use(recover.New())
	s.App.Use(requestid.New())
	s.App.Use(logger.New())
	s.App.Use(monitoring.Middleware(s.Metrics))
	if s.requestLog != nil {
		s.App.Use(monitoring.RequestLogger(s.requestLog, cfg.ServiceName))
	}
	s.App.Use(auth.Authenticate(cfg.JWTSecret))

	registerRoutes(s)
	return s
}

// Close stops the stream hub's redis subscription.
func (s *Server) Close() error {
	return s.Stream.Close()
}

// registerRoutes mounts fixed prefixes first; the posts pages end in
// /:username/ catch-alls.
func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", monitoring.Handler(s.Registry))

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB)
	postsSvc := posts.NewService(s.DB,
		posts.WithImages(storage.NewService(s.DB, s.Media)),
		posts.WithBroadcaster(s.Stream),
		posts.WithMetrics(s.Metrics),
	)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	posts.RegisterAdminRoutes(s.App.Group("/admin"), postsSvc, auth.AdminRequired(authSvc))
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	storage.RegisterRoutes(s.App.Group(mediaPrefix(s.Cfg)), s.Media)

	posts.RegisterRoutes(s.App, postsSvc, s.Cache, s.Cfg.IndexCacheTTL, auth.LoginRequired(s.Cfg.LoginURL))
}

func mediaRoot(cfg config.Config) string {
	if cfg.MediaRoot == "" {
		return "media"
	}
	return cfg.MediaRoot
}

func mediaPrefix(cfg config.Config) string {
	prefix := "/" + strings.Trim(cfg.MediaURL, "/")
	if prefix == "/" {
		return "/media"
	}
	return prefix
}

// errorHandler renders every failure as JSON. Details of 5xx errors are
// logged, never returned.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	switch {
	case code == fiber.StatusNotFound:
		return c.Status(code).JSON(fiber.Map{"status": code, "error": "page not found", "path": c.Path()})
	case code >= fiber.StatusInternalServerError:
		log.WithError(err).WithFields(log.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("request failed")
		return c.Status(code).JSON(fiber.Map{"status": code, "error": "server error"})
	default:
		return c.Status(code).JSON(fiber.Map{"status": code, "error": fe.Message})
	}
}
