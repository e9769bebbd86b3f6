package s7

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

func TestWithDefaultPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.0.10", "192.168.0.10:102"},
		{"192.168.0.10:1102", "192.168.0.10:1102"},
		{"plc.local", "plc.local:102"},
		{"::1", "[::1]:102"},
		{"[::1]:102", "[::1]:102"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := WithDefaultPort(tc.in); got != tc.want {
				t.Errorf("WithDefaultPort(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	o := &options{rack: 0, slot: 1, timeout: defaultTimeout}
	WithRackSlot(0, 2)(o)
	WithTimeout(3 * time.Second)(o)
	WithTimeout(0)(o)

	if o.rack != 0 || o.slot != 2 {
		t.Errorf("rack/slot = %d/%d, want 0/2", o.rack, o.slot)
	}
	if o.timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", o.timeout)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{io.EOF, true},
		{fmt.Errorf("read: %w", io.EOF), true},
		{errors.New("write tcp 10.0.0.1:102: broken pipe"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("CPU : Item not available"), false},
		{errors.New("invalid block number"), false},
		{errors.New("CPU : Block closed for access"), false},
		{errors.New("CPU : Job timeout in PLC"), false},
		{errors.New("use of closed network connection"), true},
	}
	for _, tc := range tests {
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := IsConnectionError(tc.err); got != tc.want {
				t.Errorf("IsConnectionError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil client: %v", err)
	}
	if _, err := c.ReadDB(1, 0, 4); err == nil {
		t.Error("ReadDB on nil client should fail")
	}
	if _, err := c.DBSize(1); err == nil {
		t.Error("DBSize on nil client should fail")
	}
	if got := c.ConnectionMode(); got != "Not connected" {
		t.Errorf("ConnectionMode() = %q", got)
	}
}
