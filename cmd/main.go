// Vessel Frame is an AIS vessel-tracking daemon: it consumes decoded
// AIS messages, maintains the set of currently tracked vessels, flags
// zone entry/exit, persists everything to a local sqlite database, and
// exposes an admin HTTP/WebSocket surface for querying and live
// monitoring.
//
// Startup order mirrors the platform's original main.go: load the
// configuration, wire the in-process message bus, open storage and run
// its migrations, construct the dependent components in the order they
// depend on each other, start
// background goroutines, then block for a shutdown signal and tear
// everything down in reverse order.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/adminserver"
	"github.com/vesselframe/vesselframe/internal/bus"
	"github.com/vesselframe/vesselframe/internal/cache"
	"github.com/vesselframe/vesselframe/internal/config"
	"github.com/vesselframe/vesselframe/internal/logger"
	"github.com/vesselframe/vesselframe/internal/manager"
	"github.com/vesselframe/vesselframe/internal/pluginapi"
	"github.com/vesselframe/vesselframe/internal/plugins"
	_ "github.com/vesselframe/vesselframe/internal/plugins/builtin"
	"github.com/vesselframe/vesselframe/internal/repository"
	"github.com/vesselframe/vesselframe/internal/screen"
	"github.com/vesselframe/vesselframe/internal/vessel"
)

func main() {
	configPath := flag.String("config", "vesselframe.toml", "path to the TOML configuration file")
	dbPath := flag.String("db", "vesselframe.sqlite", "path to the sqlite vessel database")
	adminAddr := flag.String("addr", ":8090", "admin HTTP/WebSocket listen address")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logPretty := flag.Bool("log-pretty", false, "use human-readable console log output instead of JSON")
	flag.Parse()

	logger.Initialize(*logLevel, *logPretty)
	log := logger.Component("orchestrator")

	log.Info().Str("config", *configPath).Msg("loading configuration")
	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	messageBus := bus.New()

	log.Info().Str("path", *dbPath).Msg("opening vessel repository")
	repo, err := repository.New(repository.Config{Path: *dbPath})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open vessel repository")
	}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repo.Start(startCtx); err != nil {
		cancelStart()
		log.Fatal().Err(err).Msg("failed to start vessel repository")
	}
	cancelStart()

	zones := toVesselZones(cfg.Zones())
	maxTracked := int(toInt(cfg.Get("system.max_tracked", int64(10000))))

	vesselManager := manager.New(messageBus, repo, manager.Config{
		MaxTracked: maxTracked,
		Zones:      zones,
	})
	vesselManager.Start()

	redisCache := openCache(cfg, log)

	// The shared cron instance backs any plugin's PluginScheduler; it
	// runs for the process lifetime even when no plugin currently
	// schedules a job.
	cronInstance := cron.New()
	cronInstance.Start()

	registry := plugins.Global()
	screens := buildScreens(registry, messageBus, cfg, vesselManager, cronInstance)
	coordinator := screen.New(messageBus, screens)
	coordinator.Start()

	sources := startSources(registry, messageBus, cfg, cronInstance)

	admin := adminserver.New(adminserver.Config{Addr: *adminAddr}, messageBus, vesselManager, repo, registry, coordinator, redisCache)
	admin.Start()

	log.Info().Msg("vessel frame started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := admin.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown error")
	}
	for _, src := range sources {
		if err := src.Stop(); err != nil {
			log.Error().Err(err).Str("source", src.Name()).Msg("error stopping source")
		}
	}
	coordinator.Stop()
	cronStopped := cronInstance.Stop()
	<-cronStopped.Done()
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Error().Err(err).Msg("error closing cache")
		}
	}
	vesselManager.Stop()
	if err := repo.Stop(); err != nil {
		log.Error().Err(err).Msg("error closing vessel repository")
	}
	messageBus.Shutdown()

	log.Info().Msg("vessel frame stopped")
}

// openCache constructs the optional Redis stats cache from the
// "cache.*" config keys. A disabled or unreachable Redis is tolerated:
// the admin server falls back to querying the repository directly.
func openCache(cfg *config.Config, log zerolog.Logger) *cache.Cache {
	enabled := toBool(cfg.Get("cache.enabled", false))
	c, err := cache.NewCache(cache.Config{
		Host:     stringDefault(cfg.Get("cache.host", "localhost")),
		Port:     stringDefault(cfg.Get("cache.port", "6379")),
		Password: stringDefault(cfg.Get("cache.password", "")),
		DB:       int(toInt(cfg.Get("cache.db", int64(0)))),
		Enabled:  enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cache unavailable, continuing without it")
		c, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	return c
}

func stringDefault(v any) string {
	s, _ := v.(string)
	return s
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toVesselZones(zones []config.Zone) []vessel.Zone {
	out := make([]vessel.Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, vessel.Zone{Name: z.Name, Lat: z.Lat, Lon: z.Lon, RadiusKm: z.RadiusKm})
	}
	return out
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// buildScreens constructs the configured screen plugins in the order
// listed under "screens.order" in the config file, falling back to the
// single bundled console screen when no order is configured.
func buildScreens(registry *plugins.Registry, b *bus.Bus, cfg *config.Config, mgr *manager.Manager, cronInstance *cron.Cron) []pluginapi.Screen {
	order := stringSlice(cfg.Get("screens.order", nil))
	if len(order) == 0 {
		order = []string{"console"}
	}

	screens := make([]pluginapi.Screen, 0, len(order))
	for _, name := range order {
		ctx := pluginapi.Context{
			Bus:       b,
			Config:    cfg,
			Log:       logger.Component("screen"),
			Scheduler: plugins.NewPluginScheduler(cronInstance, name),
		}
		instance, err := registry.Create(plugins.GroupScreens, name, ctx, screenConfig(cfg, name))
		if err != nil {
			ctx.Log.Warn().Err(err).Str("screen", name).Msg("skipping unregistered screen")
			continue
		}
		s, ok := instance.(pluginapi.Screen)
		if !ok {
			continue
		}
		if binder, ok := instance.(interface{ Bind(*manager.Manager) }); ok {
			binder.Bind(mgr)
		}
		screens = append(screens, s)
	}
	return screens
}

// startSources constructs and starts the configured source plugins,
// defaulting to the bundled synthetic source when none are configured.
func startSources(registry *plugins.Registry, b *bus.Bus, cfg *config.Config, cronInstance *cron.Cron) []pluginapi.Source {
	names := stringSlice(cfg.Get("sources.enabled", nil))
	if len(names) == 0 {
		names = []string{"synthetic"}
	}

	sources := make([]pluginapi.Source, 0, len(names))
	for _, name := range names {
		ctx := pluginapi.Context{
			Bus:       b,
			Config:    cfg,
			Log:       logger.Component("source"),
			Scheduler: plugins.NewPluginScheduler(cronInstance, name),
		}
		instance, err := registry.Create(plugins.GroupSources, name, ctx, sourceConfig(cfg, name))
		if err != nil {
			ctx.Log.Warn().Err(err).Str("source", name).Msg("skipping unregistered source")
			continue
		}
		src, ok := instance.(pluginapi.Source)
		if !ok {
			continue
		}
		if err := src.Start(); err != nil {
			ctx.Log.Error().Err(err).Str("source", name).Msg("failed to start source")
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

func screenConfig(cfg *config.Config, name string) map[string]any {
	raw := cfg.Get("screens."+name, nil)
	m, _ := raw.(map[string]any)
	return m
}

func sourceConfig(cfg *config.Config, name string) map[string]any {
	raw := cfg.Get("sources."+name, nil)
	m, _ := raw.(map[string]any)
	return m
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
