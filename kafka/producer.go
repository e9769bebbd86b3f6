package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"go.uber.org/zap"

	"plclogger/config"
	"plclogger/namespace"
	"plclogger/publish"
)

// ConnectionStatus represents the state of a Kafka connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Producer writes snapshots to the configured topic, keyed by DB number.
type Producer struct {
	config  *config.KafkaConfig
	writer  *kafka.Writer
	status  ConnectionStatus
	lastErr error
	mu      sync.RWMutex
	log     *zap.SugaredLogger

	messagesSent  int64
	messagesError int64
	lastSendTime  time.Time
}

// NewProducer creates a new Kafka producer.
func NewProducer(cfg *config.KafkaConfig, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		config: cfg,
		status: StatusDisconnected,
		log:    logger.Sugar().Named("kafka").With("cluster", cfg.Name),
	}
}

// Name returns the producer's name.
func (p *Producer) Name() string {
	return "kafka:" + p.config.Name
}

// GetStatus returns the current connection status.
func (p *Producer) GetStatus() ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// GetError returns the last error.
func (p *Producer) GetError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// GetStats returns producer statistics.
func (p *Producer) GetStats() (sent, errors int64, lastSend time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messagesSent, p.messagesError, p.lastSendTime
}

// Status implements publish.StatusReporter.
func (p *Producer) Status() publish.Status {
	sent, failed, lastSend := p.GetStats()
	st := publish.Status{
		Name:     p.Name(),
		State:    strings.ToLower(p.GetStatus().String()),
		Sent:     sent,
		Errors:   failed,
		LastSend: lastSend,
	}
	if err := p.GetError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// Start verifies a broker is reachable and prepares the topic writer.
func (p *Producer) Start(ctx context.Context) error {
	if len(p.config.Brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}
	mech, err := saslMechanism(p.config)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.status = StatusConnecting
	p.lastErr = nil
	p.mu.Unlock()

	dialer := &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		TLS:           tlsConfig(p.config),
		SASLMechanism: mech,
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var conn *kafka.Conn
	for _, broker := range p.config.Brokers {
		if conn, err = dialer.DialContext(dialCtx, "tcp", broker); err == nil {
			break
		}
	}
	if err != nil {
		p.mu.Lock()
		p.status = StatusError
		p.lastErr = fmt.Errorf("failed to connect: %w", err)
		p.mu.Unlock()
		return p.GetError()
	}
	conn.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = p.newWriter(mech)
	p.status = StatusConnected
	p.log.Infof("Connected to Kafka brokers %v", p.config.Brokers)
	return nil
}

func (p *Producer) newWriter(mech sasl.Mechanism) *kafka.Writer {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
		TLS:         tlsConfig(p.config),
		SASL:        mech,
	}

	attempts := p.config.MaxRetries + 1
	return &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        p.config.Topic,
		Balancer:     &kafka.Hash{},
		Transport:    transport,
		RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		MaxAttempts:  attempts,
		BatchTimeout: 10 * time.Millisecond,
		// Snapshots of large DBs can exceed the default 1MB batch.
		BatchBytes:             16 << 20,
		AllowAutoTopicCreation: true,
	}
}

// MessageKey returns the record key for a snapshot; one key per DB keeps
// snapshots of the same block on the same partition.
func MessageKey(snap *publish.Snapshot) []byte {
	return []byte(namespace.New("", "").KafkaBlockKey(snap.DB))
}

// Publish sends snap to the topic and blocks until it is acknowledged.
func (p *Producer) Publish(ctx context.Context, snap *publish.Snapshot) error {
	p.mu.RLock()
	writer := p.writer
	status := p.status
	p.mu.RUnlock()
	if writer == nil || status != StatusConnected {
		return fmt.Errorf("Kafka cluster '%s' not connected", p.config.Name)
	}

	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   MessageKey(snap),
		Value: value,
		Time:  snap.Timestamp,
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.messagesError++
		p.lastErr = err
		return fmt.Errorf("kafka produce failed: %w", err)
	}
	p.messagesSent++
	p.lastSendTime = time.Now()
	p.lastErr = nil
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	writer := p.writer
	p.writer = nil
	p.status = StatusDisconnected
	p.mu.Unlock()

	if writer != nil {
		return writer.Close()
	}
	return nil
}
