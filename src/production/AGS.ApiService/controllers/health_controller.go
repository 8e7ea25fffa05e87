package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
)

// BrokerStatus reports the MQTT bridge connection state.
type BrokerStatus interface {
	IsConnected() bool
}

// StorePinger reports primary store reachability. configured is false when
// the service runs on the fallback store alone.
type StorePinger interface {
	PingStore(ctx context.Context) (configured bool, err error)
}

// HealthController exposes liveness and readiness probes
type HealthController struct {
	bridge BrokerStatus
	store  StorePinger
	logger *logger.Logger
}

func NewHealthController(bridge BrokerStatus, store StorePinger, log *logger.Logger) *HealthController {
	return &HealthController{bridge: bridge, store: store, logger: log.WithComponent("health-controller")}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.Live)
	router.GET("/health/ready", c.Ready)
}

func (c *HealthController) Live(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *HealthController) Ready(ctx *gin.Context) {
	mqttUp := c.bridge != nil && c.bridge.IsConnected()

	// an unconfigured primary store is a supported degraded mode, not a
	// readiness failure
	storeComponent := "disabled"
	storeUp := true
	if c.store != nil {
		configured, err := c.store.PingStore(ctx.Request.Context())
		if configured {
			storeUp = err == nil
			storeComponent = "up"
			if err != nil {
				storeComponent = "down"
				c.logger.Logger.Warn().Err(err).Msg("Primary store readiness check failed")
			}
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !mqttUp || !storeUp {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	ctx.JSON(status, gin.H{
		"status": overall,
		"components": gin.H{
			"mqtt":  mqttUp,
			"store": storeComponent,
		},
	})
}
