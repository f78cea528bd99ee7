package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"rag-chatbot/config"
	"rag-chatbot/internal/app"
	"rag-chatbot/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err, "%v: invalid configuration", config.ModuleSetting)
	}
	logger.Configure(string(cfg.LogLevel))
	logger.Info("Starting up %s...", cfg.Server.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal(err, "%v: startup failed", config.ModuleServer)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error(err, "%v: shutdown", config.ModuleServer)
		}
	}()

	server := app.NewServer(a)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down %s...", cfg.Server.AppName)
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error(err, "%v: shutdown", config.ModuleServer)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := server.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, "%v: server error", config.ModuleServer)
	}
}
