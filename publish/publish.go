// Package publish fans a data block snapshot out to the configured republishers.
package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"plclogger/block"
)

// Snapshot is the message republished after a successful export.
type Snapshot struct {
	ID        string    `json:"id"`
	PLC       string    `json:"plc"`
	Address   string    `json:"address"`
	Rack      int       `json:"rack"`
	Slot      int       `json:"slot"`
	DB        int       `json:"db"`
	Size      int       `json:"size"`
	Data      []byte    `json:"data"` // base64 in JSON
	File      string    `json:"file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Source identifies the PLC a snapshot came from.
type Source struct {
	PLC     string
	Address string
	Rack    int
	Slot    int
}

// NewSnapshot builds a snapshot of b with a fresh ID.
func NewSnapshot(src Source, b *block.Block, file string) *Snapshot {
	name := src.PLC
	if name == "" {
		name = src.Address
	}
	return &Snapshot{
		ID:        uuid.NewString(),
		PLC:       name,
		Address:   src.Address,
		Rack:      src.Rack,
		Slot:      src.Slot,
		DB:        b.DB,
		Size:      b.Size(),
		Data:      b.Data,
		File:      file,
		Timestamp: b.ReadAt,
	}
}

// Publisher delivers snapshots to one destination.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap *Snapshot) error
	Close() error
}

// Status is the health of one publisher as shown by the status API.
type Status struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Sent      int64     `json:"sent"`
	Errors    int64     `json:"errors"`
	LastSend  time.Time `json:"last_send,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// StatusReporter is implemented by publishers that track their own health.
type StatusReporter interface {
	Status() Status
}

// Counters tracks delivery results for a publisher. The zero value is ready to use.
type Counters struct {
	mu       sync.Mutex
	sent     int64
	errors   int64
	lastSend time.Time
	lastErr  string
}

// Record counts one delivery attempt made at t.
func (c *Counters) Record(err error, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errors++
		c.lastErr = err.Error()
		return
	}
	c.sent++
	c.lastSend = t
}

// Status returns the counters as a Status with the given name and state.
func (c *Counters) Status(name, state string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Name:      name,
		State:     state,
		Sent:      c.sent,
		Errors:    c.errors,
		LastSend:  c.lastSend,
		LastError: c.lastErr,
	}
}

// Reporter is implemented by publishers that aggregate others.
type Reporter interface {
	Statuses() []Status
}

// Fanout publishes each snapshot to every publisher in parallel.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
	log        *zap.SugaredLogger
}

// NewFanout creates a Fanout. A zero timeout means no deadline beyond the caller's context.
func NewFanout(logger *zap.Logger, timeout time.Duration, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		publishers: publishers,
		timeout:    timeout,
		log:        logger.Sugar().Named("publish"),
	}
}

// Len returns the number of publishers.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Name implements Publisher.
func (f *Fanout) Name() string {
	names := make([]string, len(f.publishers))
	for i, p := range f.publishers {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// Statuses returns the status of every publisher, in configuration order.
// Publishers that do not track their health are reported as "unknown".
func (f *Fanout) Statuses() []Status {
	if f.Len() == 0 {
		return nil
	}
	out := make([]Status, len(f.publishers))
	for i, p := range f.publishers {
		if r, ok := p.(StatusReporter); ok {
			out[i] = r.Status()
			continue
		}
		out[i] = Status{Name: p.Name(), State: "unknown"}
	}
	return out
}

// Publish sends snap to all publishers and returns an error naming every failure.
// A failing publisher does not stop the others.
func (f *Fanout) Publish(ctx context.Context, snap *Snapshot) error {
	if f.Len() == 0 {
		return nil
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	errs := make([]error, len(f.publishers))
	var g errgroup.Group
	for i, p := range f.publishers {
		g.Go(func() error {
			if err := p.Publish(ctx, snap); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
				f.log.Warnw("publish failed", "publisher", p.Name(), "db", snap.DB, "error", err)
				return nil
			}
			f.log.Debugw("published snapshot", "publisher", p.Name(), "db", snap.DB, "id", snap.ID)
			return nil
		})
	}
	g.Wait()

	var failed []string
	var first error
	for _, err := range errs {
		if err != nil {
			if first == nil {
				first = err
			}
			failed = append(failed, err.Error())
		}
	}
	if first == nil {
		return nil
	}
	if len(failed) == 1 {
		return first
	}
	return fmt.Errorf("%d publishers failed: %s", len(failed), strings.Join(failed, "; "))
}

// Close closes every publisher and returns the first error.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var first error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil && first == nil {
			first = fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return first
}
