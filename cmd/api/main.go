package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/audit"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/auth"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/cloudinary"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/config"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/handler"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/httpmiddleware"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/live"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/queue"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/scheduler"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/seed"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/settings"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]handler.HealthCheck{}

	var (
		db         *store.DB
		repo       attendance.Repository
		auditStore audit.Store
	)
	if cfg.DataBackend == config.BackendPostgres {
		var err error
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db.Client); err != nil {
			return err
		}
		repo = attendance.NewPostgresRepository(db.Client, cfg.Location)
		auditStore = audit.NewPostgresStore(db.Client)
		health["db"] = db.Healthy
	} else {
		repo = attendance.NewMemoryRepository(nil, nil)
		auditStore = audit.NewMemoryStore()
	}

	var redisClient *store.Redis
	if cfg.SettingsBackend == config.BackendRedis || cfg.QueueBackend == config.BackendRedis {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		health["redis"] = redisClient.Healthy
	}

	var settingsStore settings.Store = settings.NewMemory()
	if cfg.SettingsBackend == config.BackendRedis {
		settingsStore = settings.NewRedis(redisClient.Client, "")
	}

	var q queue.Queue
	if cfg.QueueBackend == config.BackendRedis {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	} else {
		q = queue.NewInMemory(256)
		// No worker shares an in-memory queue, so consume it here.
		go func() {
			if err := audit.Consume(ctx, q, auditStore); err != nil {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	}
	recorder := audit.NewRecorder(q)

	hub := live.NewHub(func(r *http.Request) bool {
		return httpmiddleware.OriginAllowed(cfg.AllowedOrigins, r.Header.Get("Origin"))
	})
	svc := attendance.NewService(repo, settingsStore,
		attendance.WithLocation(cfg.Location),
		attendance.WithAuditor(recorder),
		attendance.WithPublisher(hub),
	)

	if cfg.SeedMockData {
		seeded, err := seed.Populate(ctx, repo, svc.Now(), seed.DefaultDays)
		if err != nil {
			return err
		}
		if seeded {
			log.Println("seeded demo roster and attendance history")
		}
	}
	if _, err := svc.OpenDay(ctx); err != nil {
		log.Printf("open day failed: %v", err)
	}

	// With a shared database the worker owns the schedule.
	if cfg.DataBackend == config.BackendMemory {
		sched := scheduler.New(cfg.Location)
		if err := sched.AddOpenDay(cfg.OpenDaySchedule, svc); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop(context.Background())
	}

	users := auth.NewDirectory(cfg.BcryptCost)
	if err := users.Seed(auth.DemoUsers(), cfg.SeedPassword); err != nil {
		return err
	}

	var photos handler.PhotoUploader
	if cfg.CloudinaryConfigured() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := handler.New(handler.Deps{
		Service:  svc,
		Settings: settingsStore,
		Users:    users,
		Audit:    auditStore,
		Auditor:  recorder,
		Hub:      hub,
		Photos:   photos,
		Tokens: handler.TokenConfig{
			Issuer:     cfg.JWTIssuer,
			SigningKey: cfg.JWTSigningKey,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Health: health,
	})
	r := handler.NewRouter(h, handler.RouterOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (data=%s settings=%s queue=%s tz=%s)",
			cfg.HTTPPort, cfg.DataBackend, cfg.SettingsBackend, cfg.QueueBackend, cfg.Location)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
