package bridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	config "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Config"
	logger "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Logger"
	agsmodels "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.Models"
	state "gitlab.com/agrosens1/ags.telemetry_server/src/production/AGS.State"
)

// Bridge maintains one persistent subscription to the wildcard device
// topic and feeds the device state store. Messages arrive on a bounded
// channel drained by a single consumer goroutine, preserving per-topic
// delivery order. This path updates live state only; readings published
// over MQTT are not persisted.
type Bridge struct {
	cfg    config.MQTTConfig
	states *state.DeviceStateStore
	client mqtt.Client
	msgCh  chan inbound
	wg     sync.WaitGroup
	logger *logger.Logger

	now func() time.Time
}

type inbound struct {
	topic   string
	payload []byte
}

func New(cfg config.MQTTConfig, states *state.DeviceStateStore, log *logger.Logger) *Bridge {
	return &Bridge{
		cfg:    cfg,
		states: states,
		msgCh:  make(chan inbound, 4096),
		logger: log.WithComponent("mqtt-bridge"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (b *Bridge) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.brokerURL()).
		SetClientID(b.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(b.cfg.KeepAlive).
		SetPingTimeout(b.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(b.cfg.Reconnect).
		SetCleanSession(false)

	if b.cfg.BrokerUser != "" {
		opts.SetUsername(b.cfg.BrokerUser)
		opts.SetPassword(b.cfg.BrokerPass)
	}

	if b.cfg.UseTLS {
		tlsCfg, err := b.tlsConfig(b.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	// Runs on every successful (re)connect. Subscribing again with the
	// same topic replaces the route, so reconnect cycles do not stack
	// handlers.
	opts.OnConnect = func(c mqtt.Client) {
		b.logger.Logger.Info().Str("topic", b.cfg.Topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(b.cfg.Topic, 1, b.onMessage); token.Wait() && token.Error() != nil {
			b.logger.Logger.Error().Err(token.Error()).Str("topic", b.cfg.Topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	b.client = mqtt.NewClient(opts)
	if tk := b.client.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(ctx)
	}()

	return nil
}

func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(500)
	}
	close(b.msgCh)
	b.wg.Wait()
}

func (b *Bridge) IsConnected() bool {
	return b.client != nil && b.client.IsConnected()
}

func (b *Bridge) onMessage(_ mqtt.Client, m mqtt.Message) {
	b.msgCh <- inbound{topic: m.Topic(), payload: m.Payload()}
}

func (b *Bridge) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-b.msgCh:
			if !ok {
				return
			}
			b.process(msg)
		}
	}
}

// process parses one inbound message and applies it to the state store.
// Malformed input is dropped with a warning, never escalated: the device
// cannot be signaled back over this channel.
func (b *Bridge) process(msg inbound) {
	b.logger.Logger.Debug().Str("topic", msg.topic).Str("payload", string(msg.payload)).Msg("Received MQTT message")

	// Expected format: agrosens/<deviceId>/<metric>
	parts := strings.Split(msg.topic, "/")
	if len(parts) != 3 {
		b.logger.Logger.Warn().Str("topic", msg.topic).Str("expected", "agrosens/<deviceId>/<metric>").Msg("Invalid topic format")
		return
	}
	deviceID := parts[1]

	metric, ok := agsmodels.MetricFromTopic(parts[2])
	if !ok {
		b.logger.Logger.Warn().Str("topic", msg.topic).Str("metric", parts[2]).Msg("Unsupported metric")
		return
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(msg.payload)), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		b.logger.Logger.Warn().Str("topic", msg.topic).Str("payload", string(msg.payload)).Msg("Non-numeric payload")
		return
	}

	b.states.UpsertMetric(deviceID, metric, value, agsmodels.StatusOK, b.now())
	b.logger.Logger.Debug().Str("device_id", deviceID).Str("metric", string(metric)).Float64("value", value).Msg("Device state updated")
}

func (b *Bridge) brokerURL() string {
	scheme := "tcp"
	if b.cfg.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.cfg.BrokerHost, b.cfg.BrokerPort)
}

func (b *Bridge) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
