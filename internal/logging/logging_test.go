package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFileWriter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	w, err := FileWriter(dir)
	if err != nil {
		t.Fatalf("FileWriter failed: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("unexpected log content %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file should be removed")
	}
}

func TestNew_Levels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var a, b bytes.Buffer
	logger := New(false, &a, &b)
	logger.Debug().Msg("hidden")
	logger.Info().Str("widget", "cfd").Msg("shown")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("debug line leaked at info level: %s", out)
		}
		if !strings.Contains(out, `"widget":"cfd"`) || !strings.Contains(out, `"time"`) {
			t.Errorf("expected structured line with timestamp, got %s", out)
		}
	}

	var c bytes.Buffer
	verbose := New(true, &c)
	verbose.Debug().Msg("visible")
	if !strings.Contains(c.String(), "visible") {
		t.Errorf("verbose logger dropped debug line: %s", c.String())
	}
}
