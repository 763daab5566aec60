package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutputCarriesMessageID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")

	Info("crawler started", KeyMessageID, "CRAWLER_STARTED", "feed_url", "http://example.com")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not valid JSON: %v (%q)", err, buf.String())
	}
	if record["message_id"] != "CRAWLER_STARTED" {
		t.Errorf("message_id = %v, want CRAWLER_STARTED", record["message_id"])
	}
	if record["msg"] != "crawler started" {
		t.Errorf("msg = %v, want 'crawler started'", record["msg"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "json")
	defer SetLevel("INFO")

	Debug("not logged")
	Info("not logged either")
	Warn("logged")

	out := buf.String()
	if strings.Contains(out, "not logged") {
		t.Errorf("level filtering failed, output: %q", out)
	}
	if !strings.Contains(out, "logged") {
		t.Errorf("warn message missing, output: %q", out)
	}
}

func TestInvalidLevelIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")

	SetLevel("NOISY") // no such level, must keep INFO
	Info("still here")

	if !strings.Contains(buf.String(), "still here") {
		t.Errorf("invalid level changed filtering, output: %q", buf.String())
	}
}
