package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/hotel-backoffice/internal/checkout"
	"github.com/iliyamo/hotel-backoffice/internal/config"
	"github.com/iliyamo/hotel-backoffice/internal/database"
	"github.com/iliyamo/hotel-backoffice/internal/handler"
	"github.com/iliyamo/hotel-backoffice/internal/identity"
	"github.com/iliyamo/hotel-backoffice/internal/inventory"
	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/middleware"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/router"
	"github.com/iliyamo/hotel-backoffice/internal/scratch"
	queue_publisher "github.com/iliyamo/hotel-backoffice/internal/service"
	"github.com/iliyamo/hotel-backoffice/internal/session"
	"github.com/iliyamo/hotel-backoffice/internal/utils"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
	"github.com/iliyamo/hotel-backoffice/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := utils.InitLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("failed to connect to mysql", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; using in-process rate limits, drafts and catalog")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	rooms := repository.NewRoomRepo(db)
	reservations := repository.NewReservationRepo(db)

	var (
		scratchStore scratch.Store = scratch.NewMemoryStore()
		drafts       wizard.Store  = wizard.NewMemoryStore()
	)
	if rdb != nil {
		scratchStore = scratch.NewRedisStore(rdb, "hotel:scratch")
		drafts = wizard.NewRedisStore(rdb, cfg.WizardDraftTTL)
	}

	catalog := inventory.NewCatalog(scratchStore)
	if n, err := catalog.Sync(ctx, rooms); err != nil {
		logger.Warn("initial room catalog sync failed", "err", err)
	} else {
		logger.Info("room catalog published", "rooms", n)
	}
	directory := inventory.Publishing{RoomStore: rooms, Catalog: catalog, Log: logger}
	bookings := checkout.NewScratchBookings(scratchStore)

	// --- Sessions ---
	throttle := identity.NewLoginThrottle(rdb, cfg.LoginMaxAttempts, cfg.LoginAttemptWindow)
	svc := identity.NewService(users, tokens, throttle, identity.Options{
		Secret:         cfg.JWTSecret,
		AccessTTL:      time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, logger)
	registry := session.NewRegistry(svc, profiles, cfg.ProfileTimeout, cfg.ProfileTTL, logger)

	// --- Events ---
	var (
		publisher handler.Publisher
		consumer  *queue.Consumer
	)
	if cfg.EventsEnabled {
		publisher = queue_publisher.NewPublisher(cfg.RabbitURL, logger)
		consumer = queue.NewConsumer(cfg.RabbitURL, cfg.BookingLogPath, logger)
	}

	// --- HTTP ---
	m := metrics.New(prometheus.DefaultRegisterer)
	v := validation.New()

	e := echo.New()
	e.HideBanner = true
	e.Validator = v
	e.Use(echomw.Recover(), middleware.RequestID(), middleware.RequestLog(logger))

	cacheCfg := config.LoadCacheConfig()
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	purge := func(ctx context.Context) error {
		_, err := middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix)
		return err
	}
	authn := middleware.Authenticate(registry)
	guard := func(roles ...model.Role) echo.MiddlewareFunc {
		return middleware.RequireRole(cfg.SessionSettleTimeout, m, roles...)
	}

	router.RegisterRoutes(e, promhttp.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(registry, cfg.SessionSettleTimeout, m, logger), authn, limit)
	router.RegisterPublic(e,
		handler.NewPublicRooms(catalog),
		handler.NewCheckoutHandler(checkout.New(catalog, bookings, cfg.CheckoutPaymentDelay, v, nil), publisher, m, logger),
		cache, limit,
	)
	router.RegisterAdmin(e,
		handler.NewRoomHandler(rooms, catalog, purge, m, logger),
		handler.NewReservationHandler(reservations, directory, publisher, m, logger),
		&handler.ExecutiveHandler{Reservations: reservations, Rooms: rooms, Bookings: bookings, Log: logger},
		authn, guard,
	)
	router.RegisterWalkins(e, &handler.WalkinHandler{
		Rooms:        rooms,
		Reservations: reservations,
		Directory:    directory,
		Drafts:       drafts,
		Validator:    v,
		Publisher:    publisher,
		Metrics:      m,
		HotelName:    cfg.HotelName,
		Log:          logger,
		Now:          time.Now,
	}, authn, guard)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(cfg.CORSOrigins)(e),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(gctx, time.Minute)
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "err", err)
	}
}
