package plcman

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAddress is returned when Connect is called without a PLC address.
	ErrEmptyAddress = errors.New("please enter PLC IP address")

	// ErrNotEstablished is returned when the driver accepted Connect but reports no connection.
	ErrNotEstablished = errors.New("failed to connect to PLC")

	// ErrInvalidRackSlot is returned when rack or slot is negative.
	ErrInvalidRackSlot = errors.New("rack and slot must not be negative")

	// ErrInvalidDB is returned for DB numbers below 1.
	ErrInvalidDB = errors.New("DB number must be positive")

	// ErrShortRead is returned when the PLC returns fewer bytes than the block size.
	ErrShortRead = errors.New("short read")
)

// ConnectionError reports a failed connect: unreachable address, refused connection or
// a rack/slot mismatch.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("connection error: %v", e.Err)
	}
	return fmt.Sprintf("connection error: %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotConnectedError reports a read attempted without an active session.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string { return "not connected to PLC" }

// BlockReadError reports a failed block size query or block read.
type BlockReadError struct {
	DB  int
	Err error
}

func (e *BlockReadError) Error() string {
	return fmt.Sprintf("failed to read DB%d: %v", e.DB, e.Err)
}

func (e *BlockReadError) Unwrap() error { return e.Err }

// ExportError reports a failure writing the CSV file.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
