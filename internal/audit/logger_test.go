package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogNoopForNilLoggerAndEmptyPath(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Log(Event{Op: "push"}); err != nil {
		t.Fatalf("nil logger should be noop: %v", err)
	}
	if err := New("").Log(Event{Op: "push"}); err != nil {
		t.Fatalf("empty-path logger should be noop: %v", err)
	}
}

func TestLogWritesJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), ".openclaw", "sync.log")
	logger := New(logPath)

	first := Event{
		Op:     "restore",
		Status: StatusOK,
		Fields: map[string]string{"prefix": "openclaw"},
	}
	second := Event{
		Op:     "push",
		Status: StatusFailed,
		Code:   "REMOTE_SYNC",
		Detail: "exit status 1",
	}

	if err := logger.Log(first); err != nil {
		t.Fatalf("log first event: %v", err)
	}
	if err := logger.Log(second); err != nil {
		t.Fatalf("log second event: %v", err)
	}

	blob, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var got Event
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal first event: %v", err)
	}
	if got.Op != "restore" || got.Status != StatusOK || got.Fields["prefix"] != "openclaw" {
		t.Fatalf("unexpected first event: %+v", got)
	}
	if got.Timestamp == "" {
		t.Fatal("timestamp not stamped")
	}
	if _, err := time.Parse(time.RFC3339Nano, got.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339Nano: %v", err)
	}

	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("unmarshal second event: %v", err)
	}
	if got.Code != "REMOTE_SYNC" || got.Status != StatusFailed {
		t.Fatalf("unexpected second event: %+v", got)
	}
}
