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

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
	"github.com/Yehonatan-Bar/ear-fish/internal/handler"
	"github.com/Yehonatan-Bar/ear-fish/internal/hub"
	"github.com/Yehonatan-Bar/ear-fish/internal/registry"
	"github.com/Yehonatan-Bar/ear-fish/internal/service"
	"github.com/Yehonatan-Bar/ear-fish/internal/store"
	"github.com/Yehonatan-Bar/ear-fish/internal/translator"
	pkglog "github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		pkglog.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str(pkglog.FieldInstance, cfg.Server.InstanceID).
		Msg("starting ear-fish")

	redisStore, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()

	h := hub.New()
	reg := registry.New(redisStore, cfg.Server.InstanceID, cfg.Cache.HistoryMax)
	oracle := translator.NewHTTPOracle(cfg.Oracle)
	tr := translator.New(redisStore, oracle, cfg)
	chat := service.New(h, reg, tr)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	handler.NewHTTPHandler(h, reg, tr, redisStore, cfg.Server.InstanceID, cfg.Cache.HistoryMax).RegisterRoutes(router)
	handler.NewWSHandler(chat, cfg.WebSocket).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("ear-fish listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down ear-fish")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	// Shutdown closes the listener but not hijacked WebSocket
	// connections; dropping the process ends them and the registry
	// self-heals on reconnect.
	logger.Info().Msg("ear-fish stopped")
}
