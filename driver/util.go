package driver

import "plclogger/s7"

// IsLikelyConnectionError reports whether err means the PLC link is lost, so the
// session must drop to Disconnected. It applies the same rule the S7 client uses
// to mark itself disconnected, so both always agree.
func IsLikelyConnectionError(err error) bool {
	return s7.IsConnectionError(err)
}
