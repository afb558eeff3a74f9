package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Diagnostic is a recoverable problem found while extracting a system. The
// offending element is skipped and extraction continues.
type Diagnostic struct {
	Level     slog.Level
	System    string
	SystemRef string
	Stage     string
	Ref       string
	Message   string
}

func (d Diagnostic) Error() string {
	if d.Ref == "" {
		return fmt.Sprintf("%s/%s: %s", d.System, d.Stage, d.Message)
	}
	return fmt.Sprintf("%s/%s: %s: %s", d.System, d.Stage, d.Ref, d.Message)
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(ctx context.Context, d Diagnostic)
}

// LogSink writes diagnostics to a structured logger.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Report(ctx context.Context, d Diagnostic) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Log(ctx, d.Level, d.Message, "system", d.System, "system_ref", d.SystemRef, "stage", d.Stage, "ref", d.Ref)
}

// Collector records diagnostics in memory and optionally forwards them.
type Collector struct {
	next Sink

	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector creates a collector forwarding to next, which may be nil.
func NewCollector(next Sink) *Collector {
	return &Collector{next: next}
}

func (c *Collector) Report(ctx context.Context, d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
	if c.next != nil {
		c.next.Report(ctx, d)
	}
}

// Diagnostics returns a copy of everything recorded so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.items...)
}

// Count returns how many diagnostics at or above level were recorded for
// system. An empty system counts all systems.
func (c *Collector) Count(system string, level slog.Level) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Level >= level && (system == "" || d.System == system) {
			n++
		}
	}
	return n
}

// CountRef is Count keyed by system reference, which stays unique when
// systems in different packages share a short name.
func (c *Collector) CountRef(systemRef string, level slog.Level) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Level >= level && d.SystemRef == systemRef {
			n++
		}
	}
	return n
}

// Err aggregates recorded warnings and errors, or returns nil.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result *multierror.Error
	for _, d := range c.items {
		if d.Level >= slog.LevelWarn {
			result = multierror.Append(result, d)
		}
	}
	return result.ErrorOrNil()
}
