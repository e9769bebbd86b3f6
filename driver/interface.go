// Package driver defines the PLC collaborator used by a logging session.
package driver

// Driver is the interface the session uses to talk to a PLC.
// Implementations own exactly one connection.
type Driver interface {
	// Connection management
	Connect(address string, rack, slot int) error
	Close() error
	IsConnected() bool
	ConnectionMode() string

	// Identification
	GetDeviceInfo() (*DeviceInfo, error)

	// Data block access
	BlockSize(db int) (int, error)
	ReadBlock(db, offset, size int) ([]byte, error)

	IsConnectionError(err error) bool
}
