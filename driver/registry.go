package driver

import (
	"fmt"
	"strings"
	"time"
)

// FamilyS7 is the only PLC family with a driver.
const FamilyS7 = "s7"

// Options selects and configures a driver.
type Options struct {
	Family  string
	Timeout time.Duration
}

// Create creates a Driver for the given options.
// The connection is not established until Connect() is called on the returned driver.
func Create(opts Options) (Driver, error) {
	switch strings.ToLower(opts.Family) {
	case "", FamilyS7:
		return NewS7Adapter(opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported PLC family %q", opts.Family)
	}
}
