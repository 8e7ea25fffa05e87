package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.ApiService/controllers"
	bridge "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Bridge"
	container "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Container"
	implementation "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Implementation"
	interfaces "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Repository/Interfaces"
	state "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.State"
)

func main() {
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting Telemetry API Service")

	config := ctr.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Primary document store; nil means degraded mode on the local
	// fallback only.
	var primary interfaces.ReadingRepository
	coll, err := ctr.GetMongoCollection(ctx)
	if err != nil {
		logger.ErrorWithError(err, "MongoDB unavailable at startup, continuing on local fallback")
	} else if coll != nil {
		primary = implementation.NewMongoReadingRepository(coll)
	}

	fallback := implementation.NewFileReadingRepository(config.Fallback.Path, config.Fallback.MaxRecords, config.Fallback.MaxRawBytes)
	readingRepo := implementation.NewFailoverReadingRepository(primary, fallback, logger)

	// Shared device state, fed by HTTP ingestion and the MQTT bridge
	states := state.NewDeviceStateStore()

	mqttBridge := bridge.New(config.MQTT, states, logger)
	if err := mqttBridge.Start(ctx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT bridge")
	}
	defer mqttBridge.Stop()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	readingController := controllers.NewReadingController(readingRepo, states, logger)
	healthController := controllers.NewHealthController(mqttBridge, ctr, logger)

	readingController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("Telemetry service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
