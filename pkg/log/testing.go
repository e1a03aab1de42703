package log

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"testing"
)

// Entry is one record captured by a TestLogger.
type Entry struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// TestLogger keeps every log call in memory. Loggers derived with With
// append to the same record list.
type TestLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	level   Level
	fields  map[string]any
}

// NewTestLogger returns a TestLogger that drops records below level.
func NewTestLogger(level Level) *TestLogger {
	return &TestLogger{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		level:   level,
		fields:  map[string]any{},
	}
}

// Capture installs a TestLogger as the global provider until tb finishes,
// so loggers obtained with GetLoggerWithName inside the code under test
// record into it.
//
//	logs := log.Capture(t, log.LevelDebug)
//	runSearch()
//	e, ok := logs.Find("Search finished")
func Capture(tb testing.TB, level Level) *TestLogger {
	tb.Helper()
	l := NewTestLogger(level)
	SetProvider(testProvider{l: l})
	tb.Cleanup(func() { SetProvider(nil) })
	return l
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.record(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.record(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.record(LevelWarn, msg, fields) }

// Error mirrors the slog logger: a leading error is stored under ErrAttrKey
// along with its ErrorType.
func (t *TestLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttrKey, err, ErrorTypeKey, ErrorType(err)}, fields[1:]...)
		}
	}
	t.record(LevelError, msg, fields)
}

func (t *TestLogger) With(fields ...any) Logger {
	merged := maps.Clone(t.fields)
	addFields(merged, fields)
	return &TestLogger{mu: t.mu, entries: t.entries, level: t.level, fields: merged}
}

func (t *TestLogger) Enabled(_ context.Context, level Level) bool { return level >= t.level }

func (t *TestLogger) record(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	e := Entry{Level: level, Message: msg, Fields: maps.Clone(t.fields)}
	addFields(e.Fields, fields)
	t.mu.Lock()
	*t.entries = append(*t.entries, e)
	t.mu.Unlock()
}

// addFields accepts the same argument shapes as slog: key/value pairs and
// slog.Attr values.
func addFields(dst map[string]any, fields []any) {
	for i := 0; i < len(fields); i++ {
		switch f := fields[i].(type) {
		case slog.Attr:
			dst[f.Key] = f.Value.Any()
		case string:
			if i+1 < len(fields) {
				dst[f] = fields[i+1]
				i++
			}
		}
	}
}

// Entries returns a snapshot of the captured records.
func (t *TestLogger) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(*t.entries)
}

// Find returns the first record logged with msg.
func (t *TestLogger) Find(msg string) (Entry, bool) {
	for _, e := range t.Entries() {
		if e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns how many records were logged with msg.
func (t *TestLogger) Count(msg string) int {
	n := 0
	for _, e := range t.Entries() {
		if e.Message == msg {
			n++
		}
	}
	return n
}

// ContainsField reports whether any record carries key with value.
func (t *TestLogger) ContainsField(key string, value any) bool {
	for _, e := range t.Entries() {
		if v, ok := e.Fields[key]; ok && reflect.DeepEqual(v, value) {
			return true
		}
	}
	return false
}

type testProvider struct{ l *TestLogger }

func (p testProvider) GetLogger() Logger { return p.l }

func (p testProvider) GetLoggerWithName(name string) Logger {
	return p.l.With(ComponentKey, name)
}

func (p testProvider) SetLevel(level Level) {
	p.l.mu.Lock()
	p.l.level = level
	p.l.mu.Unlock()
}
