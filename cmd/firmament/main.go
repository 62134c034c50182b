package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nidhogg/firmament/internal/agent"
	"github.com/nidhogg/firmament/internal/ambient"
	"github.com/nidhogg/firmament/internal/api"
	"github.com/nidhogg/firmament/internal/command"
	"github.com/nidhogg/firmament/internal/config"
	"github.com/nidhogg/firmament/internal/gateway"
	"github.com/nidhogg/firmament/internal/mood"
	"github.com/nidhogg/firmament/internal/persona"
	"github.com/nidhogg/firmament/internal/provider"
	"github.com/nidhogg/firmament/internal/ratelimit"
	"github.com/nidhogg/firmament/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("The Firmament wakes...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/firmament.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	ctx := context.Background()

	// Persistence
	st, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	migrationsDir := cfg.Database.Postgres.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := st.Verify(ctx); err != nil {
		logger.Info("schema missing, running migrations", zap.String("dir", migrationsDir))
		if mErr := st.Migrate(ctx, migrationsDir); mErr != nil {
			logger.Fatal("migration failed", zap.Error(mErr))
		}
		if vErr := st.Verify(ctx); vErr != nil {
			logger.Fatal("schema verification failed after migration", zap.Error(vErr))
		}
	}

	// LLM providers
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		}
	}
	defaultProvider := cfg.Routing.Default
	if defaultProvider == "" {
		defaultProvider = cfg.Providers[0].ID
	}
	router.SetDefault(defaultProvider)
	router.SetFallbacks(cfg.Routing.Fallbacks)

	// Identity kernel
	knowledgeDir := cfg.Knowledge.Dir
	if knowledgeDir == "" {
		knowledgeDir = "knowledge"
	}
	kernel := persona.Load(knowledgeDir, logger)
	logger.Info("Identity kernel loaded", zap.Strings("files", kernel.Files()))

	// Gateway
	gw := gateway.NewGateway(logger)
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(
			cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken,
			cfg.Gateway.Slack.AmbientChannels, logger))
	}

	// Commands
	registry := command.NewRegistry()
	command.RegisterBuiltins(registry)

	// Engine
	engine := agent.NewEngine(st, router, gw, registry, kernel.Text(), engineConfig(cfg.Engine), logger)
	gw.SetHandler(engine.HandleMessage)

	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Background loops: ambient pulse, mood drift, nightly maintenance.
	runner, err := engine.StartLoops(ctx, loopConfig(cfg.Loops))
	if err != nil {
		logger.Fatal("failed to start loops", zap.Error(err))
	}

	// HTTP API
	handler := api.NewHandler(st, gw, logger)
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.Router(),
	}
	go func() {
		logger.Info("Firmament API listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("The Firmament sleeps...")
	runner.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	gw.Close()
	st.Close()
}

func engineConfig(ec config.EngineConfig) agent.Config {
	cfg := agent.Config{
		Model:               ec.Model,
		InteractTemperature: ec.InteractTemperature,
		InteractMaxTokens:   ec.InteractMaxTokens,
		AmbientTemperature:  ec.AmbientTemperature,
		AmbientMaxTokens:    ec.AmbientMaxTokens,
		EavesdropMaxTokens:  ec.EavesdropMaxTokens,
		CompactInterval:     time.Duration(ec.CompactIntervalSeconds) * time.Second,
		MaxActiveEpisodes:   ec.MaxActiveEpisodes,
		EavesdropThreshold:  ec.EavesdropThreshold,
		AmbientMessageCap:   ec.AmbientMessageCap,
		HasteNudgeAfter:     time.Duration(ec.HasteNudgeSeconds) * time.Second,
		Gate: ambient.GateConfig{
			AmbientBaseChance: ec.AmbientBaseChance,
			AmbientCooldown:   time.Duration(ec.AmbientCooldownMinutes) * time.Minute,
			EnergyFloor:       ec.AmbientEnergyFloor,
			EavesdropChance:   ec.EavesdropChance,
			EavesdropCooldown: time.Duration(ec.EavesdropCooldownMinutes) * time.Minute,
		},
		Rate: ratelimit.Config{
			Cooldown: time.Duration(ec.RateCooldownSeconds) * time.Second,
			Burst:    ec.RateBurst,
			Window:   time.Duration(ec.RateWindowSeconds) * time.Second,
		},
	}
	cfg.Mood = mood.DefaultConfig()
	if ec.MoodIdleRecoveryPerHour > 0 {
		cfg.Mood.IdleRecoveryPerHour = ec.MoodIdleRecoveryPerHour
	}
	if ec.MoodBusyThreshold > 0 {
		cfg.Mood.BusyThreshold = ec.MoodBusyThreshold
	}
	if ec.MoodBusyDecay > 0 {
		cfg.Mood.BusyDecay = ec.MoodBusyDecay
	}
	if ec.MoodEnergyFloor > 0 {
		cfg.Mood.EnergyFloor = ec.MoodEnergyFloor
	}
	cfg.Decay = store.DefaultDecayConfig()
	if ec.DecayRatePerDay > 0 {
		cfg.Decay.Rate = ec.DecayRatePerDay
	}
	if ec.DecayMinConfidence > 0 {
		cfg.Decay.MinConfidence = ec.DecayMinConfidence
	}
	if ec.DecayAgeHours > 0 {
		cfg.Decay.AgeThreshold = time.Duration(ec.DecayAgeHours) * time.Hour
	}
	if ec.DecayProtectedCount > 0 {
		cfg.Decay.ProtectedAccess = ec.DecayProtectedCount
	}
	return cfg
}

func loopConfig(lc config.LoopsConfig) agent.LoopConfig {
	cfg := agent.DefaultLoopConfig()
	if lc.AmbientIntervalMinutes > 0 {
		cfg.AmbientInterval = time.Duration(lc.AmbientIntervalMinutes) * time.Minute
	}
	if lc.DriftIntervalMinutes > 0 {
		cfg.DriftInterval = time.Duration(lc.DriftIntervalMinutes) * time.Minute
	}
	if lc.MaintenanceIntervalMinutes > 0 {
		cfg.MaintenanceInterval = time.Duration(lc.MaintenanceIntervalMinutes) * time.Minute
	}
	return cfg
}
