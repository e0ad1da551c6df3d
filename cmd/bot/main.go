package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"attendbot/internal/attendance"
	"attendbot/internal/bot"
	"attendbot/internal/config"
	"attendbot/internal/geo"
	"attendbot/internal/locale"
	"attendbot/internal/notify"
	"attendbot/internal/queue"
	"attendbot/internal/ratelimit"
	"attendbot/internal/schedule"
	"attendbot/internal/session"
	"attendbot/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("bot failed: %v", err)
	}
}

func run(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var sessions session.Store
	if cfg.SessionBackend == "memory" {
		sessions = session.NewMemory(cfg.SessionTTL)
	} else {
		sessions = session.NewRedisStore(redisClient.Client, cfg.SessionTTL)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendbot:reminders")
	}

	repo := attendance.NewRepository(db.Client)
	classifier := schedule.NewClassifier(cfg.Schedule)
	center := geo.Point{Lat: cfg.SiteLatitude, Lon: cfg.SiteLongitude}
	engine := attendance.NewService(repo, classifier, center, cfg.RadiusMeters, cfg.Schedule.Location)
	messages := locale.New(cfg.DefaultLanguage)
	cooldown := ratelimit.NewCooldown(cfg.CommandCooldown)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}

	handler := bot.New(api, cfg, repo, engine, classifier, sessions, messages, cooldown)
	dispatcher := notify.NewDispatcher(classifier, repo, q, bot.NewSender(api), messages, cfg.Schedule.Location)

	// The reminder ticker polls once per minute; the classifier's ±1 minute
	// match window covers scheduler jitter.
	c := cron.New(cron.WithLocation(cfg.Schedule.Location))
	if _, err := c.AddFunc("* * * * *", func() {
		dispatcher.Tick(ctx, cfg.Now())
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("dispatcher stopped: %v", err)
		}
	}()

	srv := healthServer(cfg, db, redisClient)
	go func() {
		log.Printf("health listener on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health listener error: %v", err)
		}
	}()

	handler.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("health listener forced shutdown: %v", err)
	}
	return nil
}

func healthServer(cfg config.App, db *store.DB, redisClient *store.Redis) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
