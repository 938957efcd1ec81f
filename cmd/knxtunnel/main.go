// Command knxtunnel is a demo KNXnet/IP tunnelling client: it loads
// configuration, opens a tunnel against a KNXnet/IP server, records bus
// activity to SQLite, and logs every connect/disconnect/telegram event
// until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/knxnetip/config"
	"github.com/nerrad567/knxnetip/knx"
	"github.com/nerrad567/knxnetip/logging"
	"github.com/nerrad567/knxnetip/recorder"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	flag.Parse()

	fmt.Printf("knxtunnel %s (%s)\n", version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires configuration, logging, the optional recorder, and the tunnel
// together, then blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.ToLoggingConfig())
	logger.Info("starting knxtunnel", "server", cfg.Tunnel.ServerIP, "port", cfg.Tunnel.ServerControlPort)

	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec, err = startRecorder(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rec.Stop()
	}

	callbacks := &demoCallbacks{logger: logger, recorder: rec}
	tun, err := knx.Start(callbacks, cfg.ToOptions(logger))
	if err != nil {
		return fmt.Errorf("starting tunnel: %w", err)
	}

	logger.Info("tunnel started, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("shutdown signal received, stopping tunnel")
	tun.Stop()
	return nil
}

func startRecorder(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*recorder.Recorder, error) {
	store, err := recorder.Open(recorder.Config{
		Path:        cfg.Recorder.Path,
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("opening recorder database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close() //nolint:errcheck // best-effort cleanup on the failure path
		return nil, fmt.Errorf("migrating recorder database: %w", err)
	}

	rec := recorder.New(store)
	rec.SetLogger(logger)
	if err := rec.Start(); err != nil {
		store.Close() //nolint:errcheck // best-effort cleanup on the failure path
		return nil, fmt.Errorf("starting recorder: %w", err)
	}
	return rec, nil
}

// demoCallbacks is the minimal knx.Callbacks implementation this binary
// wires in: log every lifecycle event, feed inbound telegrams to the
// recorder when one is configured.
type demoCallbacks struct {
	logger   *logging.Logger
	recorder *recorder.Recorder
}

func (c *demoCallbacks) Init() knx.Result {
	return knx.OK()
}

func (c *demoCallbacks) OnConnect() knx.Result {
	c.logger.Info("tunnel connected")
	return knx.OK()
}

func (c *demoCallbacks) OnDisconnect(reason error) knx.Result {
	c.logger.Warn("tunnel disconnected", "reason", reason)
	// Reconnect after a short backoff rather than hammering the server;
	// the library itself applies none by default.
	return knx.Backoff(5 * time.Second)
}

func (c *demoCallbacks) OnTelegram(raw []byte) knx.Result {
	tg, err := knx.DecodeTelegram(raw)
	if err != nil {
		c.logger.Warn("dropping undecodable telegram", "error", err)
		return knx.OK()
	}

	c.logger.Debug("telegram received",
		"source", tg.Source.String(),
		"destination", tg.Destination.String(),
		"service", knx.APCIName(tg.Service))

	if c.recorder != nil {
		c.recorder.RecordTelegram(tg.Source.String(), tg.Destination.String(), tg.Service == knx.APCIGroupResponse)
	}
	return knx.OK()
}

func (c *demoCallbacks) OnTelegramAck() knx.Result {
	return knx.OK()
}
