package ccpmlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	if l.Level != logrus.InfoLevel {
		t.Fatalf("Level = %v, want Info", l.Level)
	}
	if l.Out != &buf {
		t.Fatal("expected Out set to the given writer")
	}
}

func TestNew_VerboseUsesDebugLevel(t *testing.T) {
	l := New(nil, true)
	if l.Level != logrus.DebugLevel {
		t.Fatalf("Level = %v, want Debug", l.Level)
	}
}

func TestNew_NilWriterFallsBackToStderr(t *testing.T) {
	l := New(nil, false)
	if l.Out == nil {
		t.Fatal("expected a non-nil default writer")
	}
}

func TestComponent_TagsComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	entry := Component(l, "cache")
	entry.Info("hello")

	if got := buf.String(); !strings.Contains(got, `component=cache`) {
		t.Fatalf("expected log line to carry component=cache, got %q", got)
	}
}
