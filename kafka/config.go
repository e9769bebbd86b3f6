// Package kafka produces data block snapshots to a Kafka topic.
package kafka

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"plclogger/config"
)

// SASL mechanism names accepted in config.
const (
	SASLNone        = ""
	SASLPlain       = "PLAIN"
	SASLSCRAMSHA256 = "SCRAM-SHA-256"
	SASLSCRAMSHA512 = "SCRAM-SHA-512"
)

// tlsConfig returns a TLS configuration if TLS is enabled.
func tlsConfig(c *config.KafkaConfig) *tls.Config {
	if !c.UseTLS {
		return nil
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.TLSSkipVerify,
	}
}

// saslMechanism returns the configured SASL mechanism, or nil when no
// username is set.
func saslMechanism(c *config.KafkaConfig) (sasl.Mechanism, error) {
	if c.Username == "" {
		return nil, nil
	}

	switch strings.ToUpper(c.SASLMechanism) {
	case SASLNone, SASLPlain:
		return plain.Mechanism{
			Username: c.Username,
			Password: c.Password,
		}, nil
	case SASLSCRAMSHA256:
		return scram.Mechanism(scram.SHA256, c.Username, c.Password)
	case SASLSCRAMSHA512:
		return scram.Mechanism(scram.SHA512, c.Username, c.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", c.SASLMechanism)
	}
}
