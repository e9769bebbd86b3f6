package tui

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"plclogger/config"
	"plclogger/driver"
	"plclogger/plcman"
)

type stubDriver struct {
	connected bool
	refuse    bool
	blocks    map[int][]byte
	created   int
}

func (d *stubDriver) Connect(address string, rack, slot int) error {
	if d.refuse {
		return errors.New("connection refused")
	}
	d.connected = true
	return nil
}
func (d *stubDriver) Close() error {
	d.connected = false
	return nil
}
func (d *stubDriver) IsConnected() bool            { return d.connected }
func (d *stubDriver) ConnectionMode() string       { return "stub" }
func (d *stubDriver) IsConnectionError(error) bool { return false }
func (d *stubDriver) GetDeviceInfo() (*driver.DeviceInfo, error) {
	return &driver.DeviceInfo{}, nil
}
func (d *stubDriver) BlockSize(db int) (int, error) {
	data, ok := d.blocks[db]
	if !ok {
		return 0, errors.New("block not found")
	}
	return len(data), nil
}
func (d *stubDriver) ReadBlock(db, offset, size int) ([]byte, error) {
	return d.blocks[db][offset : offset+size], nil
}

func newTestApp(t *testing.T, drv *stubDriver) (*App, *config.Config, *LogStore) {
	t.Helper()
	return newTestAppWithConfig(t, drv, "")
}

func newTestAppWithConfig(t *testing.T, drv *stubDriver, configPath string) (*App, *config.Config, *LogStore) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	t.Cleanup(screen.Fini)

	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()

	store := NewLogStore(100)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(io.Discard), zapcore.DebugLevel)
	logger := zap.New(core, zap.Hooks(store.Hook))
	session := plcman.NewSession(func() (driver.Driver, error) {
		drv.created++
		return drv, nil
	},
		plcman.WithLogger(logger),
		plcman.WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)

	a := NewAppWithScreen(cfg, configPath, session, store, screen)
	a.async = func(work func() func()) { work()() }
	return a, cfg, store
}

func frontPage(a *App) string {
	name, _ := a.pages.GetFrontPage()
	return name
}

func TestAcceptDigits(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"0", true},
		{"123", true},
		{"-1", false},
		{"1a", false},
		{" 1", false},
	}
	for _, tc := range tests {
		if got := acceptDigits(tc.text, 0); got != tc.want {
			t.Errorf("acceptDigits(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestLogStore(t *testing.T) {
	s := NewLogStore(2)
	calls := 0
	s.SetOnChange(func() { calls++ })

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, msg := range []string{"one", "two", "three"} {
		if err := s.Hook(zapcore.Entry{Time: ts, Message: msg, Level: zapcore.InfoLevel}); err != nil {
			t.Fatalf("Hook: %v", err)
		}
	}
	s.Hook(zapcore.Entry{Time: ts, Message: "boom", Level: zapcore.ErrorLevel})

	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	// Brackets are escaped so tview does not read the timestamp as a style tag.
	if want := tview.Escape("[2024-01-02 03:04:05] three"); lines[0] != want {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[red]") || !strings.Contains(lines[1], "boom") {
		t.Errorf("error line not highlighted: %q", lines[1])
	}
	if calls != 4 {
		t.Errorf("onChange called %d times, want 4", calls)
	}
}

func TestInitialStatus(t *testing.T) {
	a, _, _ := newTestApp(t, &stubDriver{})
	if got := a.statusBar.GetText(true); !strings.Contains(got, "Not connected to PLC") {
		t.Errorf("status = %q", got)
	}
	if a.dbField.GetText() != "1" || a.rackField.GetText() != "0" || a.slotField.GetText() != "1" {
		t.Error("form does not show config defaults")
	}
}

func TestConnectEmptyAddress(t *testing.T) {
	drv := &stubDriver{}
	a, _, _ := newTestApp(t, drv)
	a.connect()

	if frontPage(a) != "error" {
		t.Errorf("front page = %q, want error modal", frontPage(a))
	}
	if drv.created != 0 {
		t.Error("driver must not be created for an empty address")
	}
}

func TestConnect(t *testing.T) {
	a, _, store := newTestApp(t, &stubDriver{})
	a.ipField.SetText("192.168.0.1")
	a.connect()

	if frontPage(a) != "main" {
		t.Errorf("unexpected modal %q", frontPage(a))
	}
	if got := a.statusBar.GetText(true); !strings.Contains(got, "Connected to PLC at 192.168.0.1") {
		t.Errorf("status = %q", got)
	}
	lines := store.Lines()
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "Successfully connected to PLC at 192.168.0.1") {
		t.Errorf("log = %q", lines)
	}
	if !strings.Contains(a.logView.GetText(true), "Successfully connected") {
		t.Error("log panel not refreshed")
	}
}

func TestConnectSavesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	a, _, _ := newTestAppWithConfig(t, &stubDriver{}, path)
	a.ipField.SetText("192.168.0.7")
	a.dbField.SetText("12")
	a.slotField.SetText("2")
	a.connect()

	if frontPage(a) != "main" {
		t.Errorf("unexpected modal %q", frontPage(a))
	}
	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.PLC.Address != "192.168.0.7" || saved.PLC.Slot != 2 || saved.PLC.DB != 12 {
		t.Errorf("saved PLC = %+v", saved.PLC)
	}
}

func TestConnectRefusedKeepsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	a, _, _ := newTestAppWithConfig(t, &stubDriver{refuse: true}, path)
	a.ipField.SetText("192.168.0.7")
	a.connect()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("config written after a failed connect: %v", err)
	}
}

func TestConnectRefused(t *testing.T) {
	a, _, _ := newTestApp(t, &stubDriver{refuse: true})
	a.ipField.SetText("192.168.0.1")
	a.connect()

	if frontPage(a) != "error" {
		t.Errorf("front page = %q, want error modal", frontPage(a))
	}
	if got := a.statusBar.GetText(true); !strings.Contains(got, "Not connected to PLC") {
		t.Errorf("status = %q", got)
	}
}

func TestReadNotConnected(t *testing.T) {
	a, cfg, _ := newTestApp(t, &stubDriver{})
	a.readAndSave()

	if frontPage(a) != "error" {
		t.Errorf("front page = %q, want error modal", frontPage(a))
	}
	entries, _ := os.ReadDir(cfg.Output.Dir)
	if len(entries) != 0 {
		t.Errorf("unexpected files %v", entries)
	}
}

func TestReadAndSave(t *testing.T) {
	a, cfg, store := newTestApp(t, &stubDriver{blocks: map[int][]byte{5: {1, 2, 3, 4}}})
	a.ipField.SetText("192.168.0.1")
	a.connect()
	a.dbField.SetText("5")
	a.readAndSave()

	if frontPage(a) != "info" {
		t.Errorf("front page = %q, want success modal", frontPage(a))
	}
	path := filepath.Join(cfg.Output.Dir, "plc_db5_data_20240102_030405.csv")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export missing: %v", err)
	}
	lines := store.Lines()
	if !strings.Contains(lines[len(lines)-1], "Successfully read DB5 and saved to") {
		t.Errorf("log = %q", lines)
	}
}

func TestReadMissingBlock(t *testing.T) {
	a, _, _ := newTestApp(t, &stubDriver{blocks: map[int][]byte{}})
	a.ipField.SetText("192.168.0.1")
	a.connect()
	a.readAndSave()

	if frontPage(a) != "error" {
		t.Errorf("front page = %q, want error modal", frontPage(a))
	}
}

func TestDisconnect(t *testing.T) {
	a, _, _ := newTestApp(t, &stubDriver{})
	a.ipField.SetText("192.168.0.1")
	a.connect()
	a.disconnect()

	if got := a.statusBar.GetText(true); !strings.Contains(got, "Not connected to PLC") {
		t.Errorf("status = %q", got)
	}
}
