// Package mqtt republishes data block snapshots to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"plclogger/config"
	"plclogger/namespace"
	"plclogger/publish"
)

const connectTimeout = 5 * time.Second

// Publisher handles the MQTT connection to a single broker.
type Publisher struct {
	config    *config.MQTTConfig
	namespace string
	client    pahomqtt.Client
	running   bool
	mu        sync.RWMutex
	log       *zap.SugaredLogger
	stats     publish.Counters
}

// NewPublisher creates a new MQTT publisher for a single broker.
func NewPublisher(cfg *config.MQTTConfig, namespace string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		config:    cfg,
		namespace: namespace,
		log:       logger.Sugar().Named("mqtt").With("broker", cfg.Name),
	}
}

// Name returns the publisher's name.
func (p *Publisher) Name() string {
	return "mqtt:" + p.config.Name
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Status implements publish.StatusReporter.
func (p *Publisher) Status() publish.Status {
	state := "stopped"
	if p.IsRunning() {
		state = "connected"
	}
	return p.stats.Status(p.Name(), state)
}

// BrokerURL returns the broker URL derived from the config.
// An unset port falls back to 1883, or 8883 with TLS.
func (p *Publisher) BrokerURL() string {
	port := p.config.Port
	if p.config.UseTLS {
		if port == 0 {
			port = 8883
		}
		return fmt.Sprintf("ssl://%s:%d", p.config.Broker, port)
	}
	if port == 0 {
		port = 1883
	}
	return fmt.Sprintf("tcp://%s:%d", p.config.Broker, port)
}

// Start connects to the MQTT broker.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	// Build options and connect WITHOUT holding the lock
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.BrokerURL())
	if p.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	clientID := p.config.ClientID
	if clientID == "" {
		clientID = "plclogger-" + p.config.Name
	}
	opts.SetClientID(clientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	p.log.Debugf("Attempting to connect to MQTT broker %s", p.BrokerURL())

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect %s: timeout", p.BrokerURL())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", p.BrokerURL(), err)
	}
	p.log.Infof("Connected to MQTT broker %s", p.BrokerURL())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	return nil
}

// Close disconnects from the MQTT broker.
func (p *Publisher) Close() error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.running = false
	p.mu.Unlock()

	// Disconnect OUTSIDE the lock to prevent blocking
	if client != nil {
		client.Disconnect(500)
	}
	return nil
}

// Topic returns the topic for a snapshot: [root/][namespace/]plc/db<n>.
func (p *Publisher) Topic(snap *publish.Snapshot) string {
	return namespace.New(p.config.RootTopic, p.namespace).MQTTBlockTopic(snap.PLC, snap.DB)
}

// Publish sends the snapshot as JSON and waits for the broker acknowledgement
// according to the configured QoS.
func (p *Publisher) Publish(ctx context.Context, snap *publish.Snapshot) error {
	err := p.publish(ctx, snap)
	p.stats.Record(err, time.Now())
	return err
}

func (p *Publisher) publish(ctx context.Context, snap *publish.Snapshot) error {
	p.mu.RLock()
	running := p.running
	client := p.client
	p.mu.RUnlock()

	if !running || client == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	token := client.Publish(p.Topic(snap), p.config.QoS, p.config.Retain, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
