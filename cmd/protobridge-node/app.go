package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/osu-uwrt/riptide-fw-bridge/pkg/bridge"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/bridge/params"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/bridge/topics"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/config"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/observability"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/paramstore"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/transport"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/transport/mem"
	"github.com/osu-uwrt/riptide-fw-bridge/pkg/transport/tcp"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if opts.Target != "" {
		cfg.Target = opts.Target
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("protobridge started",
		zap.String("app", cfg.AppName),
		zap.String("target", cfg.Target),
		zap.Uint32("protocol_version", protocol.ProtocolVersion))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics are optional; the bridge takes a nil *BridgeMetrics otherwise.
	var bridgeMetrics *observability.BridgeMetrics
	var metricsSrv *observability.MetricsServer
	if cfg.Metrics.Enable {
		reg := prometheus.NewRegistry()
		bridgeMetrics = observability.NewBridgeMetrics(reg, cfg.Target)
		metricsSrv = observability.NewMetricsServer(cfg.Metrics.Addr, reg)
		metricsSrv.Start()
		zap.L().Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
	}

	store := paramstore.New(paramstore.Options{
		DefaultTTL: time.Duration(cfg.Params.DefaultTTLMS) * time.Millisecond,
		MaxBytes:   cfg.Params.MaxBytes,
	})
	defer store.Close()

	var topicHandler *topics.Handler
	srv := transport.NewServer(logger, func(clientID int, connected bool) {
		if !connected && topicHandler != nil {
			topicHandler.UnsubscribeClient(clientID)
		}
	})

	b := bridge.New(cfg.Target, srv.Transmit, logger, bridgeMetrics)

	topicHandler, err = topics.New(b, cfg.Topics, logger)
	if err != nil {
		zap.L().Error("failed to build topic handler", zap.Error(err))
		return 1
	}
	paramHandler := params.New(b, store, logger)
	b.SetHandlers(topicHandler, paramHandler)

	for _, lc := range cfg.Listeners {
		var tr transport.Transport
		switch lc.Kind {
		case "tcp":
			tr = tcp.New()
		case "mem":
			tr = mem.New()
		}
		ln, err := tr.Listen(ctx, lc.Address)
		if err != nil {
			zap.L().Error("failed to start listener",
				zap.String("kind", lc.Kind), zap.String("address", lc.Address), zap.Error(err))
			return 1
		}
		zap.L().Info("listening",
			zap.String("kind", lc.Kind), zap.String("address", ln.Addr().String()))
		go func() {
			if err := srv.Serve(ctx, ln, b); err != nil {
				zap.L().Error("listener failed", zap.Error(err))
			}
		}()
	}

	zap.L().Info("bridge is running; press Ctrl+C to exit")
	<-ctx.Done()

	if metricsSrv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shCtx)
	}
	return 0
}
