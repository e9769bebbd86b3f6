// Package namespace provides utilities for constructing topic and key paths
// with consistent namespace prefixing across all services (MQTT, Valkey, Kafka).
package namespace

import (
	"strconv"
	"strings"
)

// Builder constructs prefix- and namespace-qualified topics and keys.
// Empty segments are skipped, so neither prefix nor namespace is required.
type Builder struct {
	prefix    string
	namespace string
}

// New creates a new namespace builder. prefix is the service-specific root
// (MQTT root topic, Valkey key prefix); namespace is the site-wide namespace.
func New(prefix, namespace string) *Builder {
	return &Builder{
		prefix:    prefix,
		namespace: namespace,
	}
}

// BlockSegment names a data block in every path: db<n>.
func BlockSegment(db int) string {
	return "db" + strconv.Itoa(db)
}

// --- MQTT (delimiter: /) ---

// MQTTBlockTopic returns the topic for a block snapshot: [{prefix}/][{ns}/]{plc}/db{n}
func (b *Builder) MQTTBlockTopic(plc string, db int) string {
	return join("/", b.prefix, b.namespace, plc, BlockSegment(db))
}

// --- Valkey (delimiter: :) ---

// ValkeyBlockKey returns the key for a block snapshot: [{prefix}:][{ns}:]{plc}:db{n}
// Changes are published on a channel of the same name.
func (b *Builder) ValkeyBlockKey(plc string, db int) string {
	return join(":", b.prefix, b.namespace, plc, BlockSegment(db))
}

// --- Kafka ---

// KafkaBlockKey returns the message key for a block snapshot. All snapshots of
// one block share a key and therefore a partition.
func (b *Builder) KafkaBlockKey(db int) string {
	return BlockSegment(db)
}

// join joins segments with sep, trimming sep from each segment and dropping
// empty ones to avoid "a//b" or ":a:b:".
func join(sep string, segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, sep)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
