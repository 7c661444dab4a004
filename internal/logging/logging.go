// Package logging
package logging

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ringSize = 100

// Entry is a captured log record, shaped for the admin status endpoint.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// Ring keeps the most recent log entries in memory.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
}

func newRing() *Ring {
	return &Ring{entries: make([]Entry, 0, ringSize)}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if len(r.entries) > ringSize {
		r.entries = r.entries[1:]
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ringCore mirrors log records into a Ring alongside the primary sink.
type ringCore struct {
	zapcore.LevelEnabler
	ring *Ring
}

func (c *ringCore) With([]zapcore.Field) zapcore.Core { return c }

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, _ []zapcore.Field) error {
	c.ring.add(Entry{
		Timestamp: ent.Time.UTC().Format(time.RFC3339),
		Level:     ent.Level.CapitalString(),
		Message:   ent.Message,
		Component: ent.LoggerName,
	})
	return nil
}

func (c *ringCore) Sync() error { return nil }

// New builds the process logger: console output at the configured level plus
// an in-memory ring of the last entries at Info and above.
func New(level string) (*zap.Logger, *Ring) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		lvl,
	)

	ring := newRing()
	core := zapcore.NewTee(console, &ringCore{LevelEnabler: zapcore.InfoLevel, ring: ring})
	return zap.New(core), ring
}
