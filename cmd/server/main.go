package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockguard/internal/api"
	"github.com/annel0/blockguard/internal/api/replay"
	"github.com/annel0/blockguard/internal/auth"
	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/chestlock"
	"github.com/annel0/blockguard/internal/config"
	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/observability"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/statestore"
	"github.com/annel0/blockguard/internal/storage"
	"github.com/annel0/blockguard/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $BLOCKGUARD_CONFIG)")
	logLevel := flag.String("log-level", "", "уровень логов в консоли (перекрывает logging.level)")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := run(*configPath, *logLevel); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := configureLogging(cfg.Logging, logLevel); err != nil {
		return err
	}
	logging.Info("🛡️  Запуск blockguard...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// === ТРАССИРОВКА ===
	shutdownTracing, err := observability.InitTelemetry(ctx, observability.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTracing(context.Background())

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	eventbus.Init(bus)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter := eventbus.NewMetricsExporter(bus, registry)
	exporter.Start(ctx)
	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("start logging listener: %w", err)
	}

	// === МИРЫ ===
	worlds := world.NewManager()
	if cfg.Storage.DataPath != "" {
		store, err := storage.NewGridStore(cfg.Storage.DataPath)
		if err != nil {
			return fmt.Errorf("open grid store: %w", err)
		}
		defer store.Close()
		if err := store.LoadAll(worlds); err != nil {
			return fmt.Errorf("load worlds: %w", err)
		}
		worlds.SetSaver(store, cfg.Storage.GetAutosave())
	}
	worlds.Run(ctx)
	defer func() {
		if err := worlds.Stop(); err != nil {
			logging.Error("❌ Ошибка сохранения миров: %v", err)
		}
	}()

	// === ПЕРЕКЛЮЧАТЕЛИ ===
	state := policy.NewGlobalState()
	toggles, err := newToggleStore(ctx, cfg.State)
	if err != nil {
		return err
	}
	defer toggles.Close()
	if err := statestore.Bind(ctx, toggles, state); err != nil {
		return fmt.Errorf("bind toggles: %w", err)
	}

	// === ПРАВИЛА ===
	policies := policy.NewRegistry()
	regions := region.NewManager()
	blacklists := blacklist.NewSet()
	reloader := api.NewReloader(configPath, policies, regions, blacklists, worlds)
	rules, err := cfg.Rules()
	if err != nil {
		return fmt.Errorf("build rules: %w", err)
	}
	if _, err := reloader.Apply(rules); err != nil {
		return err
	}

	// === КОНВЕЙЕР ===
	pipeline := guard.New(guard.Options{
		Policies:    policies,
		State:       state,
		Worlds:      worlds,
		Regions:     guard.NewRegionPolicy(regions, guard.ActorPermissions{}),
		Blacklists:  guard.NewBlacklists(blacklists),
		Chests:      chestlock.New(worlds),
		Permissions: guard.ActorPermissions{},
		Messenger:   guard.NewBusMessenger(bus),
		Metrics:     guard.NewMetrics(registry),
		Auditor:     guard.NewBusAuditor(bus),
		MirrorWorld: cfg.Server.MirrorWorld,
	})

	vetoes := replay.NewStore(cfg.Server.VetoLogSize)
	if _, err := vetoes.Attach(ctx, bus); err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	webhooks := api.NewOutboundWebhookManager(hostname)
	webhooks.LoadConfig(cfg.Webhooks)
	if _, err := webhooks.Attach(ctx, bus); err != nil {
		return err
	}
	webhooks.Start(ctx)

	// === REST API ===
	tokens, err := auth.NewTokenManager(cfg.Admin.GetJWTSecret(), cfg.Admin.GetTokenTTL())
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	if cfg.Admin.GetJWTSecret() == "" {
		logging.Warn("⚠️  jwt_secret не задан: токены действуют до перезапуска")
	}
	if cfg.Admin.PasswordHash == "" {
		logging.Warn("⚠️  password_hash не задан: вход администратора отключён")
	}

	rest, err := api.NewRestServer(api.Config{
		Port:         cfg.Server.GetRESTPort(),
		Pipeline:     pipeline,
		Tokens:       tokens,
		Credentials:  auth.Credentials{Username: cfg.Admin.Username, PasswordHash: cfg.Admin.PasswordHash},
		Reloader:     reloader,
		Bus:          bus,
		Vetoes:       vetoes,
		Webhooks:     webhooks,
		BridgeSecret: cfg.Server.BridgeSecret,
		ServiceName:  cfg.Telemetry.ServiceName,
		Registerer:   registry,
		Gatherer:     registry,
	})
	if err != nil {
		return err
	}
	if err := rest.Start(); err != nil {
		return err
	}

	metricsSrv := startMetricsServer(cfg.Server.GetMetricsPort(), registry)

	logging.Info("✅ blockguard запущен: миров=%d, REST :%d, метрики :%d",
		len(policies.Worlds()), cfg.Server.GetRESTPort(), cfg.Server.GetMetricsPort())

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := rest.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	webhooks.Wait()
	exporter.Wait()

	logging.Info("👋 blockguard остановлен")
	return nil
}

// newEventBus выбирает JetStream при заданном URL, иначе шину в памяти
func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("Шина событий: в памяти")
		return eventbus.NewMemoryBus(cfg.BufferSize), nil
	}
	retention := time.Duration(cfg.Retention) * time.Hour
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	if err != nil {
		return nil, fmt.Errorf("connect jetstream: %w", err)
	}
	logging.Info("Шина событий: NATS JetStream %s", cfg.URL)
	return bus, nil
}

// newToggleStore выбирает Redis при заданном URL, иначе хранилище в памяти
func newToggleStore(ctx context.Context, cfg config.StateConfig) (statestore.ToggleStore, error) {
	if cfg.RedisURL == "" {
		return statestore.NewMemoryStore(), nil
	}
	store, err := statestore.NewRedisStore(ctx, statestore.RedisConfig{
		URL:     cfg.RedisURL,
		Key:     cfg.Key,
		Channel: cfg.Channel,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return store, nil
}

// startMetricsServer поднимает отдельный HTTP-эндпоинт Prometheus
func startMetricsServer(port int, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()
	return srv
}

// configureLogging применяет уровни из конфигурации; флаг перекрывает logging.level
func configureLogging(cfg config.LoggingConfig, flagLevel string) error {
	raw := cfg.Level
	if flagLevel != "" {
		raw = flagLevel
	}
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logging.SetConsoleLevel(level)

	levels, err := logging.ParseComponentLevels(cfg.Components)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logging.GetLoggerManager().SetComponentLevels(levels)
	return nil
}
