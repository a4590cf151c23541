package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func noEnv(string) (string, bool) { return "", false }

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Output: &buf, LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Component(logger, ComponentLocator).Info("searching")
	if !strings.Contains(buf.String(), "component=locator") {
		t.Fatalf("expected component field, got %q", buf.String())
	}
}

func TestNewJSONFromEnv(t *testing.T) {
	var buf bytes.Buffer
	env := map[string]string{EnvLogFormat: "json", EnvLogLevel: "debug"}
	logger, err := New(Options{Level: "error", Format: "text", Output: &buf, LookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected env level override, got %s", logger.GetLevel())
	}
	logger.WithField("phase", "locating").Debug("entered")
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if record["phase"] != "locating" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewRejectsBadLevelAndFormat(t *testing.T) {
	if _, err := New(Options{Level: "loud", LookupEnv: noEnv}); err == nil {
		t.Fatal("expected invalid level error")
	}
	if _, err := New(Options{Format: "xml", LookupEnv: noEnv}); err == nil {
		t.Fatal("expected invalid format error")
	}
}

func TestComponentWithNilLogger(t *testing.T) {
	entry := Component(nil, ComponentService)
	entry.Error("dropped")
}
