package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevels(t *testing.T) {
	l, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v", l.GetLevel())
	}
	if _, err := NewLogger("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestPrintKV(t *testing.T) {
	var buf bytes.Buffer
	PrintKV(&buf, "Latency", "%d samples", 64)
	out := buf.String()
	if !strings.Contains(out, "Latency:") || !strings.Contains(out, "64 samples") {
		t.Fatalf("unexpected output %q", out)
	}
}
