// Package main запускает бота магазина Telegram Stars и служебный HTTP-сервер.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mkorchagin/starshop-bot/internal/bot"
	"github.com/mkorchagin/starshop-bot/internal/catalog"
	"github.com/mkorchagin/starshop-bot/internal/config"
	"github.com/mkorchagin/starshop-bot/internal/handler"
	"github.com/mkorchagin/starshop-bot/internal/middleware"
	"github.com/mkorchagin/starshop-bot/internal/notify"
	"github.com/mkorchagin/starshop-bot/internal/repository"
	"github.com/mkorchagin/starshop-bot/internal/service"
	"github.com/mkorchagin/starshop-bot/internal/session"
)

const (
	pollTimeoutSeconds   = 30
	sessionSweepInterval = 5 * time.Minute
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// Переменные из .env подхватываются до чтения конфигурации; отсутствие
	// файла не является ошибкой.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := repository.NewStore(cfg.RedisURL, logger)
	if err != nil {
		sugar.Fatalw("record store initialization error", "error", err.Error())
	}
	defer store.Close()

	// Доставка уведомлений повторяется при временных сетевых сбоях.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, retryClient.StandardClient())
	if err != nil {
		sugar.Fatalw("telegram api initialization error", "error", err.Error())
	}

	cat := catalog.Default()
	notifier := notify.NewTelegram(api, cfg.AdminChatID, logger)
	svc := service.NewService(store, cat, notifier, logger, cfg.AdminChatID, cfg.SupportUsername)
	sessions := session.NewTable(session.DefaultIdleTimeout)

	b := bot.New(bot.Options{
		API:             api,
		Service:         svc,
		Sessions:        sessions,
		Catalog:         cat,
		Notifier:        notifier,
		Logger:          logger,
		SupportUsername: cfg.SupportUsername,
		PaymentDetails:  cfg.PaymentDetails,
	})

	auth := middleware.NewTokenAuth(cfg.OpsToken)
	h := handler.NewHandler(svc, store, logger, auth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Чтение и обработка обновлений Telegram
	g.Go(func() error {
		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = pollTimeoutSeconds

		updates := api.GetUpdatesChan(updateConfig)

		sugar.Infow("starting telegram bot", "username", api.Self.UserName)
		b.Run(ctx, updates)
		return nil
	})

	// Вытеснение брошенных диалоговых сессий
	g.Go(func() error {
		sessions.Run(ctx, sessionSweepInterval)
		return nil
	})

	// Запуск служебного HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting ops server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down...")

		api.StopReceivingUpdates()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
