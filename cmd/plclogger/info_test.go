package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"plclogger/driver"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("stdout closed") }

func TestWriteInfo(t *testing.T) {
	var buf bytes.Buffer
	info := &driver.DeviceInfo{Family: "s7", Model: "CPU 315-2 DP"}
	if got := writeInfo(&buf, info); got != exitOK {
		t.Fatalf("writeInfo() = %d, want %d", got, exitOK)
	}
	if !strings.Contains(buf.String(), "CPU 315-2 DP") {
		t.Errorf("output missing model: %q", buf.String())
	}
}

func TestWriteInfoWriteError(t *testing.T) {
	info := &driver.DeviceInfo{Family: "s7"}
	if got := writeInfo(failingWriter{}, info); got != exitUsage {
		t.Errorf("writeInfo() = %d, want %d", got, exitUsage)
	}
}
