package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tickrelay/internal/application/usecase/ticker"
	"tickrelay/internal/infrastructure/config"
	"tickrelay/internal/infrastructure/container"
	"tickrelay/internal/infrastructure/logger"
	"tickrelay/internal/interfaces/console"

	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup(logger.Options{})

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	// 按配置重新设置日志（级别、文件）
	logCloser := logger.Setup(logger.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.App.LogFile,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init container failed")
	}
	defer c.Close()

	// output handler (console)
	var handlers []ticker.Handler
	if cfg.Console.Enabled {
		printer := console.NewPrinter(os.Stdout, cfg.Console.Color)
		handlers = append(handlers, ticker.Handler{
			Name:    "console",
			Symbols: cfg.Symbols.List,
			Fn:      printer.Handle,
		})
	}

	svc, err := c.TickerService(handlers...)
	if err != nil {
		log.Error().Err(err).Msg("assemble ticker service failed")
		return
	}

	log.Info().
		Str("config", *configPath).
		Int("symbols", len(cfg.Symbols.List)).
		Ints("intervals", cfg.PercentageChange.Intervals).
		Str("channel", cfg.Relay.Channel).
		Msg("tickrelay started")

	if err := svc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("ticker service exited")
	}
}
