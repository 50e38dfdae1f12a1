package ui

import (
	"os"
	"strings"
	"testing"
)

func TestRender_NoColor(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	for _, got := range []string{
		RenderAccent("x"), RenderMuted("x"), RenderCommand("x"),
		RenderHealth("x"), RenderStatus("500", "x"),
	} {
		if got != "x" {
			t.Fatalf("expected plain text, got %q", got)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	SetColor(true)

	tests := []struct {
		code string
		want string
	}{
		{"500", "38;5;114m"},
		{"600", "38;5;179m"},
		{"200", "38;5;74m"},
		{"", "38;5;245m"},
	}
	for _, tt := range tests {
		got := RenderStatus(tt.code, "Delivered")
		if !strings.Contains(got, tt.want) || !strings.Contains(got, "Delivered") {
			t.Errorf("RenderStatus(%q) = %q, want color %s", tt.code, got, tt.want)
		}
	}
}

func TestRenderHealth(t *testing.T) {
	SetColor(true)
	if got := RenderHealth("ok"); !strings.Contains(got, "38;5;114m") {
		t.Errorf("ok rendered as %q", got)
	}
	if got := RenderHealth("degraded"); !strings.Contains(got, "38;5;167m") {
		t.Errorf("degraded rendered as %q", got)
	}
}

func TestShouldUseColor_Env(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR", "")
	t.Setenv("CLICOLOR_FORCE", "1")
	if !ShouldUseColor(f) {
		t.Error("CLICOLOR_FORCE=1 should force color")
	}

	t.Setenv("NO_COLOR", "1")
	if ShouldUseColor(f) {
		t.Error("NO_COLOR should win over CLICOLOR_FORCE")
	}

	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "")
	if ShouldUseColor(f) {
		t.Error("a regular file is not a terminal")
	}
}

func TestTerminalWidth_Fallback(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := TerminalWidth(f, 80); got != 80 {
		t.Fatalf("got %d, want 80", got)
	}
	if got := TerminalWidth(nil, 100); got != 100 {
		t.Fatalf("got %d, want 100", got)
	}
}
