// Package main provides the reclaimd server entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydroloop/reclaim/internal/config"
	"github.com/hydroloop/reclaim/internal/mqttbridge"
	"github.com/hydroloop/reclaim/internal/server"
	"github.com/hydroloop/reclaim/internal/watcher"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Config file path")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	batchSize := flag.Int("batch-size", 0, "Readings per batch (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	config.Set(cfg)

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down reclaimd")
		cancel()
	}()

	svc := server.NewWithObserver(Version, cfg)
	log.Info().
		Str("version", Version).
		Int("batchSize", cfg.BatchSize).
		Msg("Starting reclaimd")

	startConfigWatcher(*configPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Start(gctx)
	})

	if cfg.MQTT.Enabled && cfg.MQTT.Broker != "" {
		conn, err := mqttbridge.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT unavailable, bridge disabled")
		} else {
			bridge := mqttbridge.New(conn, svc.Controller(), cfg.MQTT.Topic)
			if err := bridge.Start(); err != nil {
				log.Warn().Err(err).Msg("Failed to start MQTT bridge")
				conn.Close()
			} else {
				g.Go(func() error {
					<-gctx.Done()
					bridge.Close()
					return nil
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("reclaimd error")
	}
}

// startConfigWatcher exits the process when the config file changes so
// a supervisor restarts it with fresh settings.
func startConfigWatcher(configPath string) {
	w, err := watcher.New(configPath, func() {
		log.Warn().Str("path", configPath).Msg("Config file changed, exiting for restart...")
		time.Sleep(100 * time.Millisecond) // Give logs time to flush
		os.Exit(0)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("Failed to start config watcher")
		return
	}
	log.Info().Str("path", configPath).Msg("Config file watcher started")
}
