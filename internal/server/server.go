package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"crash/internal/cache"
	"crash/internal/database"
	"crash/internal/game"
	"crash/internal/ledger"
	"crash/internal/oracle"
)

type FiberServer struct {
	*fiber.App

	db          database.Service
	cache       cache.Service
	engine      *game.Engine
	coordinator *game.Coordinator
	hub         *game.Hub
	store       game.Store
	oracle      *oracle.Client
	cfg         game.Config
}

func New() *FiberServer {
	db := database.New()
	store := ledger.NewPostgresStore(db.Pool())

	redisService := cache.New()
	var redisClient *redis.Client
	if redisService != nil {
		redisClient = redisService.GetClient()
	} else {
		log.Println("[SERVER] Running without Redis price cache")
	}

	cfg := game.DefaultConfig()
	hub := game.NewHub()
	engine := game.NewEngine(cfg, store, hub)
	priceClient := oracle.New(redisClient)
	coordinator := game.NewCoordinator(store, priceClient, engine, hub)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crash",
			AppName:       "crash",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:          db,
		cache:       redisService,
		engine:      engine,
		coordinator: coordinator,
		hub:         hub,
		store:       store,
		oracle:      priceClient,
		cfg:         cfg,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	engine.Start()

	log.Println("[SERVER] Round engine started")

	return server
}

// Shutdown stops the round engine and closes connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.engine != nil {
		s.engine.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
