package main

import (
	"errors"

	"plclogger/plcman"
)

// Process exit codes.
const (
	exitOK           = 0
	exitUsage        = 1
	exitConnection   = 2
	exitNotConnected = 3
	exitBlockRead    = 4
	exitExport       = 5
)

// exitCode maps a session error to the process exit code.
func exitCode(err error) int {
	var (
		connErr   *plcman.ConnectionError
		notConn   *plcman.NotConnectedError
		readErr   *plcman.BlockReadError
		exportErr *plcman.ExportError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &connErr):
		return exitConnection
	case errors.As(err, &notConn):
		return exitNotConnected
	case errors.As(err, &readErr):
		return exitBlockRead
	case errors.As(err, &exportErr):
		return exitExport
	default:
		return exitUsage
	}
}
