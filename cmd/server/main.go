package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tata-codec/internal/config"
	"tata-codec/internal/dispatcher"
	"tata-codec/internal/grpcclient"
	"tata-codec/internal/link"
	"tata-codec/internal/observability"
	"tata-codec/internal/pipeline"
	"tata-codec/internal/server"
	"tata-codec/internal/store"
	"tata-codec/internal/transport"
	"tata-codec/internal/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel)
	logger.Info("Starting tata-codec...", "port", cfg.TCPPort, "device", cfg.DevicePhone)
	if cfg.DevicePhone == "" {
		logger.Warn("DEVICE_PHONE not set, reports from any number are accepted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inicializar Redis antes del server
	st, err := store.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("Redis init failed", "error", err)
		return
	}
	defer st.Close()

	var d *dispatcher.Dispatcher
	receive := func(source string) func(context.Context, transport.Message) {
		return func(ctx context.Context, m transport.Message) {
			observability.MessagesRecv.WithLabelValues(source).Inc()
			d.ProcessIncoming(ctx, m)
		}
	}

	srv := server.New(func(ctx context.Context, m transport.Message) { d.ProcessIncoming(ctx, m) }, logger)

	// the bridge is preferred for outbound SMS, NATS is the fallback
	outbound := transport.Fallback{srv}
	var sinks []pipeline.Sink

	var bus *transport.Bus
	if cfg.NATSURL != "" {
		bus, err = transport.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("NATS init failed", "error", err)
			return
		}
		defer bus.Close()
		outbound = append(outbound, bus)
		sinks = append(sinks, pipeline.PublishSink{Publisher: bus})
	}

	if cfg.GRPCServer != "" {
		fwd, err := grpcclient.NewForwarder(cfg.GRPCServer)
		if err != nil {
			logger.Error("gRPC init failed", "error", err)
			return
		}
		defer fwd.Close()
		sinks = append(sinks, fwd)
	}

	var lk *link.Link
	if cfg.ProxyAddr != "" {
		lk = link.New(cfg.ProxyAddr, logger, receive("link"))
		sinks = append(sinks, lk)
	} else {
		logger.Info("link: disabled (no proxy address configured)")
	}

	proc := pipeline.NewProcessor(pipeline.Options{
		DevicePhone: cfg.DevicePhone,
		Operators:   cfg.Operators,
	}, st, outbound, logger, sinks...)

	d = dispatcher.New(dispatcher.Options{
		DevicePhone:      cfg.DevicePhone,
		Operators:        cfg.Operators,
		DailyLimit:       cfg.CmdDailyLimit,
		SessionLimit:     cfg.CmdSessionLimit,
		MinRetryInterval: cfg.CmdMinRetry,
	}, st, outbound, proc, utilities.NewAuditLog(cfg.AuditDir), logger)

	if bus != nil {
		fromNATS := receive("nats")
		if _, err := bus.Subscribe(func(m transport.Message) { fromNATS(ctx, m) }); err != nil {
			logger.Error("NATS subscribe failed", "error", err)
			return
		}
	}
	if lk != nil {
		go lk.Run(ctx)
	}

	go func() {
		if err := observability.StartMetricsServer(cfg.MetricsPort); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	if err := srv.Start(ctx, ":"+cfg.TCPPort); err != nil {
		logger.Error("TCP server failed", "error", err)
	}
	logger.Info("shutdown complete")
}
