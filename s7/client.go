// Package s7 provides Siemens S7 PLC communication on top of gos7.
package s7

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/robinson/gos7"
)

const (
	// DefaultPort is the ISO-on-TCP port used by S7 CPUs.
	DefaultPort = 102

	// blockTypeDB is the S7 block type code for data blocks.
	blockTypeDB = 0x41

	defaultTimeout = 10 * time.Second
)

// Client is a high-level wrapper for S7 PLC communication.
// The underlying gos7 client is not safe for concurrent use; every call holds mu.
type Client struct {
	handler   *gos7.TCPClientHandler
	client    gos7.Client
	address   string
	rack      int
	slot      int
	connected bool
	mu        sync.Mutex
}

// options holds configuration options for Connect.
type options struct {
	rack    int
	slot    int
	timeout time.Duration
}

// Option is a functional option for Connect.
type Option func(*options)

// WithRackSlot configures the rack and slot numbers for the PLC.
// S7-300/400 CPUs usually sit in rack 0 slot 2, S7-1200/1500 in rack 0 slot 1 or 0.
func WithRackSlot(rack, slot int) Option {
	return func(o *options) {
		o.rack = rack
		o.slot = slot
	}
}

// WithTimeout configures the connection and request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDefaultPort appends the S7 port to address when it has none.
func WithDefaultPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(DefaultPort))
}

// Connect establishes a connection to an S7 PLC at the given address.
func Connect(address string, opts ...Option) (*Client, error) {
	cfg := &options{
		rack:    0,
		slot:    1,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := gos7.NewTCPClientHandler(WithDefaultPort(address), cfg.rack, cfg.slot)
	handler.Timeout = cfg.timeout
	handler.IdleTimeout = cfg.timeout

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s (rack %d, slot %d): %w", address, cfg.rack, cfg.slot, err)
	}

	return &Client{
		handler:   handler,
		client:    gos7.NewClient(handler),
		address:   address,
		rack:      cfg.rack,
		slot:      cfg.slot,
		connected: true,
	}, nil
}

// Close releases all resources associated with the client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.handler != nil {
		return c.handler.Close()
	}
	return nil
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ConnectionMode returns a human-readable string describing the connection.
func (c *Client) ConnectionMode() string {
	if c == nil {
		return "Not connected"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return fmt.Sprintf("S7 %s (Rack %d, Slot %d)", c.address, c.rack, c.slot)
	}
	return "Disconnected"
}

// DBSize returns the size in bytes of data block db as reported by the CPU's
// block information (MC7 size).
func (c *Client) DBSize(db int) (int, error) {
	if c == nil || c.client == nil {
		return 0, fmt.Errorf("DBSize: nil client")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := c.client.GetAgBlockInfo(blockTypeDB, db)
	if err != nil {
		c.markIfBroken(err)
		return 0, fmt.Errorf("block info DB%d: %w", db, err)
	}
	if info.MC7Size < 0 {
		return 0, fmt.Errorf("block info DB%d: invalid size %d", db, info.MC7Size)
	}
	return info.MC7Size, nil
}

// ReadDB reads size bytes of data block db starting at offset.
// gos7 splits the request to fit the negotiated PDU size.
func (c *Client) ReadDB(db, offset, size int) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("ReadDB: nil client")
	}
	if size < 0 || offset < 0 {
		return nil, fmt.Errorf("ReadDB: invalid range offset=%d size=%d", offset, size)
	}
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.AGReadDB(db, offset, size, buf); err != nil {
		c.markIfBroken(err)
		return nil, fmt.Errorf("read DB%d.%d (%d bytes): %w", db, offset, size, err)
	}
	return buf, nil
}

// GetCPUInfo returns information about the connected CPU.
func (c *Client) GetCPUInfo() (*CPUInfo, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("GetCPUInfo: nil client")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := c.client.GetCPUInfo()
	if err != nil {
		c.markIfBroken(err)
		return nil, err
	}

	return &CPUInfo{
		ModuleTypeName: info.ModuleTypeName,
		SerialNumber:   info.SerialNumber,
		ASName:         info.ASName,
		Copyright:      info.Copyright,
		ModuleName:     info.ModuleName,
	}, nil
}

// markIfBroken clears the connected flag when err indicates the link is dead.
// Caller must hold c.mu.
func (c *Client) markIfBroken(err error) {
	if IsConnectionError(err) {
		c.connected = false
	}
}

// CPUInfo contains information about the S7 CPU.
type CPUInfo struct {
	ModuleTypeName string
	SerialNumber   string
	ASName         string
	Copyright      string
	ModuleName     string
}
