package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestInitReplacesConfiguration(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: LevelInfo, Output: &buf, Service: "test"})
	Debug("hidden at info level")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted at info level: %s", buf.String())
	}

	// A second Init takes effect, it is not a one-shot.
	Init(Config{Level: LevelDebug, Output: &buf, Service: "test"})
	Debug("visible at debug level")
	if !strings.Contains(buf.String(), "visible at debug level") {
		t.Errorf("debug line missing after re-init: %s", buf.String())
	}
}

func TestFieldsAndErrorLandInEntry(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: LevelInfo, Output: &buf, Service: "test"})

	WithFields(map[string]any{"request_id": "req-1", "path": "/api/messages"}).
		WithError(errors.New("boom")).
		Warn("request error: %d", 502)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if entry.Level != "WARN" || entry.Message != "request error: 502" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("request_id = %q, want req-1", entry.RequestID)
	}
	if entry.Error != "boom" {
		t.Errorf("error = %q, want boom", entry.Error)
	}
	if entry.Fields["path"] != "/api/messages" {
		t.Errorf("fields = %+v", entry.Fields)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: LevelInfo, Output: &buf, Service: "test"})

	base := WithField("a", 1)
	base.WithField("b", 2)
	if _, ok := base.fields["b"]; ok {
		t.Errorf("child field leaked into parent logger")
	}
}
