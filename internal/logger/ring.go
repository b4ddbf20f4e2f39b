// internal/logger/ring.go
package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one log line kept for the dashboard.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Logger  string
	Message string
	Fields  string
}

// Ring is a zapcore.Core that keeps the last N entries in memory.
type Ring struct {
	level zapcore.LevelEnabler
	buf   *ringBuffer

	// fields added through With, pre-rendered.
	context string
}

type ringBuffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	total   uint64
}

// NewRing creates a ring of the given capacity.
func NewRing(size int, level zapcore.LevelEnabler) *Ring {
	if size <= 0 {
		size = 200
	}
	return &Ring{level: level, buf: &ringBuffer{entries: make([]Entry, size)}}
}

func (r *Ring) Enabled(l zapcore.Level) bool { return r.level.Enabled(l) }

func (r *Ring) With(fields []zapcore.Field) zapcore.Core {
	clone := *r
	clone.context = joinFields(r.context, renderFields(fields))
	return &clone
}

func (r *Ring) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

func (r *Ring) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	r.buf.add(Entry{
		Time:    ent.Time,
		Level:   ent.Level,
		Logger:  ent.LoggerName,
		Message: ent.Message,
		Fields:  joinFields(r.context, renderFields(fields)),
	})
	return nil
}

func (r *Ring) Sync() error { return nil }

// Recent returns up to limit entries, oldest first. limit <= 0 returns all.
func (r *Ring) Recent(limit int) []Entry {
	b := r.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	count, start := b.next, 0
	if b.full {
		count, start = len(b.entries), b.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}
	out := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}

// Total returns the number of entries ever written.
func (r *Ring) Total() uint64 {
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()
	return r.buf.total
}

func (b *ringBuffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	b.total++
}

func renderFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	parts := make([]string, 0, len(enc.Fields))
	for _, f := range fields {
		if v, ok := enc.Fields[f.Key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, v))
		}
	}
	return strings.Join(parts, " ")
}

func joinFields(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
