package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	automlerrors "github.com/YuminosukeSato/automlcli/pkg/errors"
)

func TestTestLoggerRecordsFields(t *testing.T) {
	testLogger := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationPredict)
	testLogger.Warn("warning message", ErrAttr(fmt.Errorf("disk full")))
	err := automlerrors.NewUntrainedModelError("search", "predict")
	testLogger.Error("error message", err, "error_code", "TEST_ERROR")

	entries := testLogger.Entries()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	if entries[0].Level != LevelDebug || entries[3].Level != LevelError {
		t.Errorf("levels = %v, %v", entries[0].Level, entries[3].Level)
	}
	if !testLogger.ContainsField("number", 42) {
		t.Error("number=42 not recorded")
	}
	if e, _ := testLogger.Find("warning message"); e.Fields[ErrAttrKey] == nil {
		t.Error("slog.Attr field not recorded")
	}

	e, ok := testLogger.Find("error message")
	if !ok {
		t.Fatal("error message not recorded")
	}
	if got, _ := e.Fields[ErrAttrKey].(error); !errors.Is(got, err) {
		t.Errorf("%s = %v", ErrAttrKey, e.Fields[ErrAttrKey])
	}
	if e.Fields[ErrorTypeKey] != "UntrainedModelError" {
		t.Errorf("%s = %v", ErrorTypeKey, e.Fields[ErrorTypeKey])
	}
	if e.Fields["error_code"] != "TEST_ERROR" {
		t.Error("fields after the leading error should be kept")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger := NewTestLogger(LevelDebug)

	runLogger := testLogger.With(ModelTypeKey, "search", RunIDKey, "run-001")
	runLogger.Info("contextual message", OperationKey, OperationTrain)
	testLogger.Info("plain message")

	e, _ := testLogger.Find("contextual message")
	for key, want := range map[string]any{
		ModelTypeKey: "search",
		RunIDKey:     "run-001",
		OperationKey: OperationTrain,
	} {
		if e.Fields[key] != want {
			t.Errorf("%s = %v, want %v", key, e.Fields[key], want)
		}
	}
	if e, _ := testLogger.Find("plain message"); len(e.Fields) != 0 {
		t.Errorf("With leaked fields into the parent: %v", e.Fields)
	}
}

func TestTestLoggerEnabled(t *testing.T) {
	testLogger := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelError) || testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Enabled does not follow the minimum level")
	}

	testLogger.Debug("hidden")
	testLogger.Info("shown")
	if testLogger.Count("hidden") != 0 || testLogger.Count("shown") != 1 {
		t.Errorf("messages = %v", testLogger.Entries())
	}
}

func TestCaptureInstallsProvider(t *testing.T) {
	t.Run("captured", func(t *testing.T) {
		logs := Capture(t, LevelInfo)
		GetLoggerWithName("dataset").Info("named logger message", SamplesKey, 10)
		GetLogger().Debug("below level")

		e, ok := logs.Find("named logger message")
		if !ok {
			t.Fatal("named logger message not captured")
		}
		if e.Fields[ComponentKey] != "dataset" || e.Fields[SamplesKey] != 10 {
			t.Errorf("fields = %v", e.Fields)
		}
		if logs.Count("below level") != 0 {
			t.Error("debug record captured at info level")
		}
	})
	if _, ok := GetLogger().(*TestLogger); ok {
		t.Error("Capture did not restore the default provider")
	}
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ToLogLevel(tt.in)
		if err != nil {
			t.Fatalf("ToLogLevel(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ToLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	_, err := ToLogLevel("verbose")
	var cfgErr *automlerrors.ConfigurationError
	if !automlerrors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	t.Setenv(DebugEnv, "")
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	if err := SetupLogger("info", "json", &buf); err != nil {
		t.Fatal(err)
	}

	err := automlerrors.NewMissingTargetError("label", "test.csv")
	GetLoggerWithName("automl").Error("Evaluate failed", err, DataPathKey, "test.csv")
	GetLogger().Debug("hidden")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["severity"] != "ERROR" {
		t.Errorf("severity = %v", entry["severity"])
	}
	if entry["message"] != "Evaluate failed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ErrorTypeKey] != "MissingTargetError" {
		t.Errorf("%s = %v", ErrorTypeKey, entry[ErrorTypeKey])
	}
	if _, ok := entry[StacktraceAttrKey]; !ok {
		t.Error("stacktrace attribute missing")
	}
	if entry[DataPathKey] != "test.csv" {
		t.Errorf("%s = %v", DataPathKey, entry[DataPathKey])
	}
}

func TestSetupLoggerRejectsUnknownFormat(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	if err := SetupLogger("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestSetupWarnings(t *testing.T) {
	var buf bytes.Buffer
	SetupWarnings(&buf)
	defer SetupWarnings(nil)

	automlerrors.Warn(automlerrors.NewDataConversionWarning("age", "string", "float64", "empty cell"))

	out := buf.String()
	if !strings.Contains(out, "WRN") {
		t.Errorf("expected console warning level, got %q", out)
	}
	if !strings.Contains(out, "column=age") {
		t.Errorf("expected column field, got %q", out)
	}
}

func TestErrorType(t *testing.T) {
	if got := ErrorType(nil); got != "" {
		t.Errorf("ErrorType(nil) = %q", got)
	}
	wrapped := errors.Wrap(automlerrors.NewUntrainedModelError("search", "predict"), "predict")
	if got := ErrorType(wrapped); got != "UntrainedModelError" {
		t.Errorf("ErrorType = %q, want UntrainedModelError", got)
	}
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger := NewTestLogger(LevelInfo)

	numGoroutines := 4
	messagesPerGoroutine := 5

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := testLogger.With(TrialKey, id)
			for j := 0; j < messagesPerGoroutine; j++ {
				l.Info("Trial finished", LossKey, float64(j))
			}
		}(i)
	}
	wg.Wait()

	if got := testLogger.Count("Trial finished"); got != numGoroutines*messagesPerGoroutine {
		t.Errorf("got %d entries, want %d", got, numGoroutines*messagesPerGoroutine)
	}
	for id := 0; id < numGoroutines; id++ {
		if !testLogger.ContainsField(TrialKey, id) {
			t.Errorf("no entry for trial %d", id)
		}
	}
}
