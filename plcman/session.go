// Package plcman owns the PLC session: connect, read a data block and export it.
package plcman

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"plclogger/block"
	"plclogger/driver"
	"plclogger/export"
	"plclogger/publish"
)

// State is the connection state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Params are the connection parameters of one session.
type Params struct {
	Address string `json:"address"`
	Rack    int    `json:"rack"`
	Slot    int    `json:"slot"`
}

// DriverFactory creates an unconnected driver for each Connect call.
type DriverFactory func() (driver.Driver, error)

// Result describes one completed read and export.
type Result struct {
	DB         int       `json:"db"`
	Size       int       `json:"size"`
	Rows       int       `json:"rows"`
	Path       string    `json:"path"`
	ReadAt     time.Time `json:"read_at"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
}

// Session is the Disconnected -> Connected -> (Read+Export)* state machine over a
// single driver. Operations are serialised; the driver is never used concurrently.
type Session struct {
	mu        sync.Mutex
	factory   DriverFactory
	drv       driver.Driver
	params    Params
	state     State
	plcName   string
	publisher publish.Publisher
	now       func() time.Time
	log       *zap.SugaredLogger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.log = logger.Sugar()
		}
	}
}

// WithClock replaces time.Now, used for read timestamps and file names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher republishes a snapshot after every successful ReadAndExport.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Session) {
		s.publisher = p
	}
}

// WithPLCName sets the PLC name used in snapshots. Defaults to the address.
func WithPLCName(name string) Option {
	return func(s *Session) {
		s.plcName = name
	}
}

// NewSession creates a disconnected session.
func NewSession(factory DriverFactory, opts ...Option) *Session {
	s := &Session{
		factory: factory,
		state:   StateDisconnected,
		now:     time.Now,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Params returns the parameters of the last connect attempt.
func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// ConnectionMode describes the live connection, or "Not connected".
func (s *Session) ConnectionMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.drv == nil {
		return "Not connected"
	}
	return s.drv.ConnectionMode()
}

// Connect opens a new connection, closing any existing one first.
// An empty address fails before a driver is created.
func (s *Session) Connect(p Params) error {
	p.Address = strings.TrimSpace(p.Address)
	if p.Address == "" {
		return &ConnectionError{Err: ErrEmptyAddress}
	}
	if p.Rack < 0 || p.Slot < 0 {
		return &ConnectionError{Address: p.Address, Err: fmt.Errorf("%w: %d/%d", ErrInvalidRackSlot, p.Rack, p.Slot)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked()
	s.params = p

	drv, err := s.factory()
	if err != nil {
		s.log.Errorf("Connection error: %v", err)
		return &ConnectionError{Address: p.Address, Err: err}
	}
	if err := drv.Connect(p.Address, p.Rack, p.Slot); err != nil {
		drv.Close()
		s.log.Errorf("Connection error: %v", err)
		return &ConnectionError{Address: p.Address, Err: err}
	}
	if !drv.IsConnected() {
		drv.Close()
		s.log.Error("Failed to connect to PLC")
		return &ConnectionError{Address: p.Address, Err: ErrNotEstablished}
	}

	s.drv = drv
	s.state = StateConnected
	s.log.Infof("Successfully connected to PLC at %s", p.Address)
	return nil
}

// Disconnect closes the connection. It is a no-op when already disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drv == nil {
		s.state = StateDisconnected
		return nil
	}
	err := s.drv.Close()
	s.drv = nil
	s.state = StateDisconnected
	s.log.Infof("Disconnected from PLC at %s", s.params.Address)
	return err
}

// dropLocked closes the driver and returns to Disconnected. Caller must hold s.mu.
func (s *Session) dropLocked() {
	if s.drv != nil {
		s.drv.Close()
		s.drv = nil
	}
	s.state = StateDisconnected
}

// connectedLocked reports whether the session and its driver are connected,
// dropping to Disconnected when the driver lost the link on its own.
func (s *Session) connectedLocked() bool {
	if s.state != StateConnected || s.drv == nil {
		return false
	}
	if !s.drv.IsConnected() {
		s.dropLocked()
		return false
	}
	return true
}

// DeviceInfo returns the CPU identification of the connected PLC.
func (s *Session) DeviceInfo() (*driver.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connectedLocked() {
		return nil, &NotConnectedError{}
	}
	info, err := s.drv.GetDeviceInfo()
	if err != nil {
		s.log.Errorf("Error reading CPU info: %v", err)
		s.checkLinkLocked(err)
		return nil, &ConnectionError{Address: s.params.Address, Err: err}
	}
	return info, nil
}

// Read reads the whole of data block db in one request.
func (s *Session) Read(db int) (*block.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(db)
}

func (s *Session) readLocked(db int) (*block.Block, error) {
	if !s.connectedLocked() {
		return nil, &NotConnectedError{}
	}
	if db <= 0 {
		return nil, &BlockReadError{DB: db, Err: ErrInvalidDB}
	}

	size, err := s.drv.BlockSize(db)
	if err != nil {
		s.failLocked(err)
		return nil, &BlockReadError{DB: db, Err: err}
	}
	data, err := s.drv.ReadBlock(db, 0, size)
	if err != nil {
		s.failLocked(err)
		return nil, &BlockReadError{DB: db, Err: err}
	}
	if len(data) != size {
		err := fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, len(data), size)
		s.log.Errorf("Error reading DB: %v", err)
		return nil, &BlockReadError{DB: db, Err: err}
	}

	s.log.Debugw("read data block", "db", db, "size", size)
	return block.New(db, data, s.now()), nil
}

// failLocked logs a block read failure and drops the session when the link is gone.
func (s *Session) failLocked(err error) {
	s.log.Errorf("Error reading DB: %v", err)
	s.checkLinkLocked(err)
}

// checkLinkLocked drops the session when err or the driver says the link is gone.
func (s *Session) checkLinkLocked(err error) {
	if s.drv.IsConnectionError(err) || !s.drv.IsConnected() {
		s.log.Warnf("Connection to %s lost", s.params.Address)
		s.dropLocked()
	}
}

// Export writes b as CSV into dir under the standard file name and returns the path.
func (s *Session) Export(b *block.Block, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, export.FileName(b.DB, b.ReadAt))
	if _, err := export.ToFile(path, b.Rows()); err != nil {
		s.log.Errorf("Error saving DB%d: %v", b.DB, err)
		return "", &ExportError{Path: path, Err: err}
	}
	return path, nil
}

// ReadAndExport reads data block db, writes it to dir and republishes a snapshot.
// Republishing failures are logged and do not fail the call.
func (s *Session) ReadAndExport(ctx context.Context, db int, dir string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.readLocked(db)
	if err != nil {
		return nil, err
	}
	path, err := s.Export(b, dir)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Successfully read DB%d and saved to %s", db, path)

	res := &Result{
		DB:     db,
		Size:   b.Size(),
		Rows:   b.Size(),
		Path:   path,
		ReadAt: b.ReadAt,
	}
	if s.publisher != nil {
		snap := publish.NewSnapshot(publish.Source{
			PLC:     s.plcName,
			Address: s.params.Address,
			Rack:    s.params.Rack,
			Slot:    s.params.Slot,
		}, b, filepath.Base(path))
		res.SnapshotID = snap.ID
		if err := s.publisher.Publish(ctx, snap); err != nil {
			s.log.Warnf("Republishing DB%d failed: %v", db, err)
		}
	}
	return res, nil
}

// PublisherStatus reports the republishing targets, or nil when none are configured.
func (s *Session) PublisherStatus() []publish.Status {
	switch p := s.publisher.(type) {
	case publish.Reporter:
		return p.Statuses()
	case publish.StatusReporter:
		return []publish.Status{p.Status()}
	}
	return nil
}

// WriteCSV reads data block db and streams it as CSV to w without touching disk.
func (s *Session) WriteCSV(db int, w io.Writer) (*block.Block, error) {
	s.mu.Lock()
	b, err := s.readLocked(db)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if _, err := export.WriteCSV(w, b.Rows()); err != nil {
		return b, &ExportError{Path: "stream", Err: err}
	}
	return b, nil
}
