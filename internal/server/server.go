package server

import (
	"context"
	"encoding/json"
	"log"

	"backend-mtbtrainer/internal/auth"
	"backend-mtbtrainer/internal/collection"
	"backend-mtbtrainer/internal/config"
	"backend-mtbtrainer/internal/export"
	"backend-mtbtrainer/internal/filter"
	"backend-mtbtrainer/internal/merge"
	"backend-mtbtrainer/internal/recording"
	"backend-mtbtrainer/internal/ride"
	"backend-mtbtrainer/internal/source"
	"backend-mtbtrainer/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Stream     *stream.Hub
	Device     *source.Push
	Controller *collection.Controller
	Exports    *export.Writer
	Recordings *recording.Service
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
		Device: source.NewPush("device"),
	}

	rideCfg := ride.Config{Thresholds: cfg.JumpThresholds(), Window: cfg.SmoothingWindow}
	if rideCfg.Window < 1 {
		rideCfg.Window = filter.DefaultWindow
	}
	s.Controller = collection.NewController(s.sources, collection.Options{
		Session:          rideCfg,
		QueueSize:        cfg.MergeQueueSize,
		SaveQueueSize:    cfg.SaveQueueSize,
		SnapshotInterval: cfg.SnapshotInterval,
		Publisher:        s.Stream,
	})

	if cfg.ExportDir != "" {
		format, err := export.ParseFormat(cfg.ExportFormat)
		if err != nil {
			log.Printf("export disabled: %v", err)
		} else if s.Exports, err = export.NewWriter(cfg.ExportDir, format); err != nil {
			log.Printf("export disabled: %v", err)
		}
	}

	if db != nil {
		s.Recordings = recording.NewService(db, rideCfg)
		if err := s.Recordings.EnsureSchema(context.Background()); err != nil {
			log.Printf("recording schema: %v", err)
		}
	}

	registerRoutes(s)
	return s
}

// sources builds the inputs of one collection session.
func (s *Server) sources() []merge.Source {
	srcs := []merge.Source{
		source.NewThrottle(s.Device, s.Cfg.LocationMinInterval, s.Cfg.LocationMinDistanceM),
	}
	if s.Cfg.MQTTBroker != "" {
		mqttSrc := source.NewMQTT(source.MQTTConfig{
			Broker:   s.Cfg.MQTTBroker,
			ClientID: s.Cfg.MQTTClientID,
			Topic:    s.Cfg.MQTTTopic,
			Username: s.Cfg.MQTTUsername,
			Password: s.Cfg.MQTTPassword,
		})
		srcs = append(srcs, source.NewThrottle(mqttSrc, s.Cfg.LocationMinInterval, s.Cfg.LocationMinDistanceM))
	}
	return srcs
}

// currentSnapshot serves late websocket joiners of the live topic or of
// the current session.
func (s *Server) currentSnapshot(topic string) ([]byte, bool) {
	snap := s.Controller.Snapshot()
	if topic != collection.LiveTopic && topic != snap.SessionID {
		return nil, false
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"collecting": s.Controller.IsCollecting(),
			"recordings": s.Recordings != nil,
		})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.Redis))
	collection.RegisterRoutes(s.App.Group("/collection"), s.Controller, jwtMiddleware)
	source.RegisterIngest(s.App, s.Device, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.currentSnapshot)
	if s.Exports != nil {
		export.RegisterRoutes(s.App.Group("/exports"), s.Exports, jwtMiddleware)
	}
	if s.Recordings != nil {
		recording.RegisterRoutes(s.App, s.Recordings, jwtMiddleware)
	}
}
