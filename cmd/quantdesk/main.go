package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/advisor"
	"github.com/quantdesk/backend/internal/alerts"
	"github.com/quantdesk/backend/internal/config"
	"github.com/quantdesk/backend/internal/logging"
	"github.com/quantdesk/backend/internal/market"
	"github.com/quantdesk/backend/internal/news"
	"github.com/quantdesk/backend/internal/notifier"
	"github.com/quantdesk/backend/internal/scheduler"
	"github.com/quantdesk/backend/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, ring := logging.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Main | shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	marketSvc := market.New(cfg.Market, logger)
	marketSvc.Start(ctx)
	defer marketSvc.Stop()

	adv := advisor.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	newsSvc := news.NewService(cfg.News.APIKey, adv, logger)
	tg := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, 2*time.Second, logger)
	alertMgr := alerts.NewManager(marketSvc, tg, alerts.Target{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	pingURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)

	sched := scheduler.New(alertMgr, pingURL, logger)
	if err := sched.Register(); err != nil {
		logger.Fatal("Main | register scheduler jobs", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	api := server.New(addr, marketSvc, adv, newsSvc, alertMgr, ring, cfg.Server.FrontendURL, logger)
	if err := api.Start(ctx); err != nil {
		logger.Fatal("Main | http server", zap.Error(err))
	}

	logger.Info("Main | shutdown complete")
}
