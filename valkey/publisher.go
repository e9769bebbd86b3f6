// Package valkey stores data block snapshots in Valkey/Redis.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"plclogger/config"
	"plclogger/namespace"
	"plclogger/publish"
)

// Publisher stores snapshots on a Valkey server.
type Publisher struct {
	config    *config.ValkeyConfig
	namespace string
	client    *redis.Client
	running   bool
	mu        sync.RWMutex
	log       *zap.SugaredLogger
	stats     publish.Counters
}

// NewPublisher creates a new Valkey publisher.
func NewPublisher(cfg *config.ValkeyConfig, namespace string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		config:    cfg,
		namespace: namespace,
		log:       logger.Sugar().Named("valkey").With("server", cfg.Name),
	}
}

// Name returns the publisher's name.
func (p *Publisher) Name() string {
	return "valkey:" + p.config.Name
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

// Address returns the server address.
func (p *Publisher) Address() string {
	scheme := "redis"
	if p.config.UseTLS {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s", scheme, p.config.Address)
}

// Start connects to the Valkey server and verifies it with PING.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	// Create client and test connection WITHOUT holding the lock
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Valkey at %s: %w", p.config.Address, err)
	}
	p.log.Infof("Connected to Valkey at %s", p.Address())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		client.Close()
		return nil
	}
	p.client = client
	p.running = true
	return nil
}

// Close disconnects from the server.
func (p *Publisher) Close() error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.running = false
	p.mu.Unlock()

	if client != nil {
		return client.Close()
	}
	return nil
}

// Key returns the key a snapshot is stored under: [prefix:][namespace:]plc:db<n>.
func (p *Publisher) Key(snap *publish.Snapshot) string {
	return namespace.New(p.config.KeyPrefix, p.namespace).ValkeyBlockKey(snap.PLC, snap.DB)
}

// Publish stores the snapshot JSON under Key with the configured TTL and, when
// PublishChanges is set, also PUBLISHes it on a channel of the same name.
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

	key := p.Key(snap)
	pipe := client.TxPipeline()
	pipe.Set(ctx, key, payload, p.config.KeyTTL)
	if p.config.PublishChanges {
		pipe.Publish(ctx, key, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	p.log.Debugf("stored snapshot %s under %s", snap.ID, key)
	return nil
}
