package logx

import (
	"strings"
	"testing"
)

func TestRenderAlertSortsFields(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"error","time":"2025-01-01T10:00:00Z","message":"delivery failed","job_id":"abc","comp":"scheduler"}`)
	got := renderAlert(line)
	want := "ERROR delivery failed\n- comp=scheduler\n- job_id=abc"
	if got != want {
		t.Fatalf("renderAlert() = %q, want %q", got, want)
	}
}

func TestRenderAlertNonJSON(t *testing.T) {
	t.Parallel()
	got := renderAlert([]byte("  plain text \n"))
	if got != "plain text" {
		t.Fatalf("renderAlert() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("x", 50)
	if got := truncate(s, 20); len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("short", 20); got != "short" {
		t.Fatalf("truncate() = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	if ParseLevel("warning", LevelInfo) != LevelWarn {
		t.Fatal("expected warn")
	}
	if ParseLevel("bogus", LevelInfo) != LevelInfo {
		t.Fatal("expected default")
	}
}
