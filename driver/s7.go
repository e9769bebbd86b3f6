package driver

import (
	"fmt"
	"time"

	"plclogger/s7"
)

// S7Adapter wraps s7.Client to implement the Driver interface.
type S7Adapter struct {
	client  *s7.Client
	timeout time.Duration
}

// NewS7Adapter creates an unconnected S7Adapter.
func NewS7Adapter(timeout time.Duration) *S7Adapter {
	return &S7Adapter{timeout: timeout}
}

// Connect establishes connection to the S7 PLC, replacing any previous connection.
func (a *S7Adapter) Connect(address string, rack, slot int) error {
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
	client, err := s7.Connect(address, s7.WithRackSlot(rack, slot), s7.WithTimeout(a.timeout))
	if err != nil {
		return fmt.Errorf("s7 connect: %w", err)
	}
	a.client = client
	return nil
}

// Close releases the connection.
func (a *S7Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// IsConnected returns true if connected to the PLC.
func (a *S7Adapter) IsConnected() bool {
	return a.client != nil && a.client.IsConnected()
}

// ConnectionMode returns a description of the connection mode.
func (a *S7Adapter) ConnectionMode() string {
	if a.client == nil {
		return "Not connected"
	}
	return a.client.ConnectionMode()
}

// GetDeviceInfo returns information about the connected PLC.
func (a *S7Adapter) GetDeviceInfo() (*DeviceInfo, error) {
	if a.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	info, err := a.client.GetCPUInfo()
	if err != nil {
		return nil, err
	}

	return &DeviceInfo{
		Family:       FamilyS7,
		Vendor:       "Siemens",
		Model:        info.ModuleTypeName,
		Version:      info.ASName,
		SerialNumber: info.SerialNumber,
		Description:  info.ModuleName,
	}, nil
}

// BlockSize returns the size of data block db in bytes.
func (a *S7Adapter) BlockSize(db int) (int, error) {
	if a.client == nil {
		return 0, fmt.Errorf("not connected")
	}
	return a.client.DBSize(db)
}

// ReadBlock reads size bytes of data block db from offset.
func (a *S7Adapter) ReadBlock(db, offset, size int) ([]byte, error) {
	if a.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	return a.client.ReadDB(db, offset, size)
}

// IsConnectionError returns true if the error indicates a connection problem.
func (a *S7Adapter) IsConnectionError(err error) bool {
	return IsLikelyConnectionError(err)
}
