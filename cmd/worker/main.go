package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/audit"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/config"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/queue"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/scheduler"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/settings"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/store"
)

// Worker drains the audit queue into Postgres and runs the open-day schedule.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.DataBackend != config.BackendPostgres || cfg.QueueBackend != config.BackendRedis {
		log.Fatalf("worker needs DATA_BACKEND=%s and QUEUE_BACKEND=%s", config.BackendPostgres, config.BackendRedis)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s, consumer will keep retrying", cfg.RedisAddr)
	}

	var settingsStore settings.Store = settings.NewMemory()
	if cfg.SettingsBackend == config.BackendRedis {
		settingsStore = settings.NewRedis(redisClient.Client, "")
	}

	repo := attendance.NewPostgresRepository(db.Client, cfg.Location)
	svc := attendance.NewService(repo, settingsStore, attendance.WithLocation(cfg.Location))

	sched := scheduler.New(cfg.Location)
	if err := sched.AddOpenDay(cfg.OpenDaySchedule, svc); err != nil {
		log.Fatalf("scheduler init failed: %v", err)
	}
	sched.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		sched.Stop(stopCtx)
	}()

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	log.Println("worker started, waiting for messages...")
	if err := audit.Consume(ctx, q, audit.NewPostgresStore(db.Client)); err != nil {
		log.Printf("queue consume failed: %v", err)
	}

	log.Println("worker stopped")
}
