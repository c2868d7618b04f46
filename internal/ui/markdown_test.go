package ui

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Encoders\n\nUse `Basic` for plain ids.\n", 60)
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if !strings.Contains(out, "Encoders") || !strings.Contains(out, "Basic") {
		t.Errorf("rendered output missing content: %q", out)
	}
	if !strings.HasSuffix(out, "\n") || strings.HasSuffix(out, "\n\n") {
		t.Errorf("expected a single trailing newline: %q", out)
	}
}

func TestGuideStyleCodeTheme(t *testing.T) {
	t.Cleanup(func() { ConfigureMarkdownCodeTheme("") })

	ConfigureMarkdownCodeTheme("  dracula ")
	if got := guideStyle().CodeBlock.Theme; got != "dracula" {
		t.Errorf("CodeBlock.Theme = %q, want dracula", got)
	}

	ConfigureMarkdownCodeTheme("")
	if got := guideStyle().CodeBlock.Theme; got != "" {
		t.Errorf("CodeBlock.Theme = %q, want empty", got)
	}
}
