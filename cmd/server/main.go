package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"bothelp.app/voiceover/common/id"
	"bothelp.app/voiceover/common/llm"
	"bothelp.app/voiceover/common/logger"
	"bothelp.app/voiceover/common/otel"
	"bothelp.app/voiceover/common/retry"
	"bothelp.app/voiceover/core/config"
	"bothelp.app/voiceover/internal/assistant"
	"bothelp.app/voiceover/internal/delivery"
	"bothelp.app/voiceover/internal/http/handler"
	"bothelp.app/voiceover/internal/http/middleware"
	httprouter "bothelp.app/voiceover/internal/http/router"
	"bothelp.app/voiceover/internal/job"
	"bothelp.app/voiceover/internal/metrics"
	"bothelp.app/voiceover/internal/queue"
	"bothelp.app/voiceover/internal/service"
	"bothelp.app/voiceover/internal/telegram"
)

var version = "dev"

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrConfigurationMissing) {
			slog.ErrorContext(ctx, "required configuration is missing", "error", err)
		} else {
			slog.ErrorContext(ctx, "failed to load config", "error", err)
		}
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "voiceover starting", "env", cfg.Env, "version", version)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}
	metrics.Init(version, cfg.Env)

	executor := retry.NewExecutor(retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}, &http.Client{Timeout: cfg.Retry.HTTPTimeout}, slog.Default())

	assistantClient := assistant.NewClient(executor, assistant.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		AssistantID: cfg.OpenAI.AssistantID,
	})
	driver := job.NewDriver(assistantClient, job.Config{
		Timeout:         cfg.Job.Timeout,
		PollInterval:    cfg.Job.PollInterval,
		MaxPollInterval: cfg.Job.MaxPollInterval,
		PollMultiplier:  cfg.Job.PollMultiplier,
	})

	bot := telegram.NewClient(executor, telegram.Config{
		BotToken: cfg.Telegram.BotToken,
		BaseURL:  cfg.Telegram.BaseURL,
	})

	events, err := newEventProducer(ctx, cfg.Redis)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	sinkOpts := []delivery.Option{delivery.WithEventIDs(id.NewBase36)}
	if cfg.Speech.Enabled {
		synth, err := llm.NewSynthesizer(llm.SpeechConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.Speech.Model,
			Voice:      cfg.Speech.Voice,
			Format:     cfg.Speech.Format,
			MaxRetries: cfg.Retry.MaxAttempts - 1,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create speech client", "error", err)
			os.Exit(1)
		}
		sinkOpts = append(sinkOpts, delivery.WithVoice(synth, bot))
		slog.InfoContext(ctx, "voice delivery enabled", "model", cfg.Speech.Model, "voice", cfg.Speech.Voice)
	}

	sink := delivery.NewSink(bot, events, delivery.Config{
		Timeout:          cfg.Delivery.Timeout,
		MaxMessageLength: cfg.Telegram.MaxMessageLength,
		BufferSize:       cfg.Delivery.BufferSize,
	}, sinkOpts...)

	voiceover := service.NewVoiceoverService(driver, sink, service.VoiceoverConfig{
		Template:    cfg.Prompt.Template,
		Placeholder: cfg.Prompt.MissingPlaceholder,
		Timeout:     cfg.Job.Timeout,
	}, slog.Default())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, voiceover),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a webhook call waits for the whole generation job
		WriteTimeout: cfg.Job.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return sink.Run(context.WithoutCancel(gctx))
	})

	g.Go(func() error {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Job.Timeout+10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}
		sink.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "voiceover stopped with error", "error", err)
	}

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutdown complete")
}

func newEventProducer(ctx context.Context, cfg config.RedisConfig) (queue.Producer, error) {
	if !cfg.Enabled() {
		slog.InfoContext(ctx, "redis disabled, delivery failures are only logged")
		return queue.NewLogProducer(slog.Default()), nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Stream)

	return queue.NewRedisProducer(client, cfg.Stream, cfg.StreamMaxLen, slog.Default()), nil
}

func setupRouter(cfg config.Config, voiceover service.VoiceoverService) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → fields → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestFields(id.New))
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	httprouter.SetupRoutes(router, handler.NewWebhookHandler(voiceover))

	return router
}

const banner = `
__   _____ ___ ___ ___ _____   _____ ___
\ \ / / _ \_ _/ __| __/ _ \ \ / / __| _ \
 \ V / (_) | | (__| _| (_) \ V /| _||   /
  \_/ \___/___\___|___\___/ \_/ |___|_|_\
`
