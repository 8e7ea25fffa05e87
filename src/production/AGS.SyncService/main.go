package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	config "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Config"
	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/agent"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/client"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/flusher"
	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.SyncService/outbox"
)

func main() {
	cfg, err := config.LoadSyncConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log := logger.NewLogger(&cfg.Logging)
	log.Info("Starting Sync Service")

	ob, err := outbox.Open(cfg.OutboxPath)
	if err != nil {
		log.FatalWithError(err, "Failed to open outbox")
	}

	apiClient := client.NewAPIClient(cfg.ApiServiceURL, cfg.HTTPTimeout)
	fl := flusher.New(ob, apiClient, flusher.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.RetryDelay,
	}, log)

	syncAgent := agent.New(apiClient, ob, fl, cfg.FlushInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go syncAgent.Run(ctx)

	log.Info("Sync service running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")
	cancel()
}
