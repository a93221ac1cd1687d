package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"melodyhub/internal/config"
	"melodyhub/internal/database"
	"melodyhub/internal/events"
	"melodyhub/internal/logger"
	"melodyhub/internal/modules/crawlermodule"
	"melodyhub/internal/modules/modulemanager"
	"melodyhub/internal/modules/musicmodule"
)

func main() {
	configPath := os.Getenv("MELODYHUB_CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./melodyhub.yaml"); err == nil {
			configPath = "./melodyhub.yaml"
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)
	if configPath != "" {
		logger.Info("configuration loaded", "path", configPath)
	} else {
		logger.Info("using default configuration")
	}

	if err := database.Connect(cfg.Database); err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	bus := events.GetGlobalEventBus()
	defer bus.Stop()

	// Registration order is init order; the crawler needs the music store.
	musicmodule.Register()
	crawlermodule.Register(cfg.Crawler, configPath)
	if err := modulemanager.LoadAll(database.GetDB()); err != nil {
		logger.Error("module initialization failed", "error", err)
		os.Exit(1)
	}

	if cfg.Logging.Level != "debug" && cfg.Logging.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.EnableCORS {
		router.Use(corsMiddleware())
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	modulemanager.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		shutdownModules()
	}()

	bus.PublishAsync(events.NewSystemEvent(events.EventSystemStarted, "System started",
		fmt.Sprintf("listening on %s", srv.Addr)))
	logger.Info("server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func shutdownModules() {
	if mod, ok := modulemanager.GetModule(crawlermodule.ModuleID); ok {
		if crawler, ok := mod.(*crawlermodule.Module); ok {
			crawler.Shutdown()
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
