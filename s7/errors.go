package s7

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// linkErrors are the typed errors that mean the TCP link to the CPU is gone.
var linkErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
	net.ErrClosed,
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// linkKeywords catch the same failures when they arrive as plain text,
// as gos7 reports most transport errors.
var linkKeywords = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"use of closed network connection",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"connection timed out",
	"forcibly closed",
	"eof",
	"not connected",
}

// IsConnectionError reports whether err means the link to the CPU is lost.
// Errors the CPU answered with (missing DB, address out of range) are not.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range linkErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range linkKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
