package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logging.Component(logger, "trainer").WithField("run_id", "r1").Debug("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "trainer" || entry["run_id"] != "r1" || entry["msg"] != "hello" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_Invalid(t *testing.T) {
	var buf bytes.Buffer
	if _, err := logging.New(&buf, "loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := logging.New(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
