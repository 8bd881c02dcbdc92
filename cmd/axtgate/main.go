package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/axt-team/axtgate/pkg/auth"
	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/config"
	"github.com/axt-team/axtgate/pkg/delivery"
	"github.com/axt-team/axtgate/pkg/dispatch"
	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/gateway"
	"github.com/axt-team/axtgate/pkg/logger"
	"github.com/axt-team/axtgate/pkg/plugins"
	"github.com/axt-team/axtgate/pkg/registry"
	"github.com/axt-team/axtgate/pkg/signature"
	"github.com/axt-team/axtgate/pkg/stats"
	"github.com/axt-team/axtgate/pkg/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg); err != nil {
		logger.ErrorC("main", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	mbus := bus.NewMessageBus(256)
	defer mbus.Close()

	refresher := auth.NewRefresher(cfg.Bot.AppID, cfg.Bot.AppSecret)
	go refresher.Run(ctx, func(err error) {
		logger.WarnC("auth", "token refresh failed: "+err.Error())
	})

	router := delivery.NewRouter(refresher.Cache(), st, mbus)

	reg := registry.New()
	plugins.RegisterBuiltins(reg, router, st)

	collector, err := stats.NewCollector(cfg.Gateway.StatsSchedule, st, mbus)
	if err != nil {
		return err
	}
	go collector.Run(ctx)

	pool := dispatch.NewPool(mbus, dispatch.New(reg, st, mbus), cfg.Gateway.Workers)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()

	server := gateway.NewServer(
		cfg,
		signature.New(cfg.Bot.AppSecret),
		event.NewClassifier(cfg.Bot.BotQQ),
		mbus,
		st,
		collector,
	)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	mbus.PublishSystem(bus.SystemEvent{Type: bus.EventSystemStarted, Source: "main"})
	logger.InfoCF("main", "axtgate running", map[string]interface{}{
		"app_id":   cfg.Bot.AppID,
		"workers":  cfg.Gateway.Workers,
		"commands": reg.Commands(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.InfoCF("main", "shutting down", map[string]interface{}{"signal": sig.String()})

	mbus.PublishSystem(bus.SystemEvent{Type: bus.EventSystemStopping, Source: "main"})

	// Stop accepting webhooks first, then let the workers drain.
	if err := server.Stop(cfg.Gateway.ShutdownGrace); err != nil {
		logger.WarnC("main", "server shutdown: "+err.Error())
	}
	cancel()
	<-poolDone

	return nil
}
