package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func withCategories(t *testing.T, s string) {
	t.Helper()
	orig := categories.Load()
	setCategories(parseCategories(s))
	t.Cleanup(func() { categories.Store(orig) })
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "stream", []string{"stream"}},
		{"multiple", "stream,engine", []string{"stream", "engine"}},
		{"with spaces", " stream , engine ", []string{"stream", "engine"}},
		{"uppercase normalized", "STREAM,Engine", []string{"stream", "engine"}},
		{"empty segments", "stream,,engine", []string{"stream", "engine"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("len(got) = %d, want %d", len(got), len(tt.want))
			}
			for _, k := range tt.want {
				if !got[k] {
					t.Errorf("category %q missing", k)
				}
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	withCategories(t, "stream,engine")

	if !Enabled("stream") || !Enabled("engine") {
		t.Error("stream and engine should be enabled")
	}
	if Enabled("tools") {
		t.Error("tools should not be enabled")
	}

	withCategories(t, "all")
	if !Enabled("anything") {
		t.Error("anything should be enabled via all")
	}

	withCategories(t, "")
	if Enabled("stream") {
		t.Error("nothing should be enabled")
	}
}

func TestCategories_Sorted(t *testing.T) {
	withCategories(t, "transport,engine,stream")
	got := strings.Join(Categories(), ",")
	if got != "engine,stream,transport" {
		t.Errorf("Categories = %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInit_JSONFormat(t *testing.T) {
	t.Setenv(EnvCategories, "")
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvFormat, "")

	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
	withCategories(t, "")

	var buf bytes.Buffer
	Init(Options{Categories: "stream", Level: "DEBUG", Format: "json", Output: &buf})

	Log("stream", "frame decoded", "kind", "text_delta")
	Log("engine", "should not appear")

	out := buf.String()
	if !strings.Contains(out, `"debug":"stream"`) || !strings.Contains(out, `"kind":"text_delta"`) {
		t.Errorf("output = %s", out)
	}
	if strings.Contains(out, "should not appear") {
		t.Errorf("disabled category leaked: %s", out)
	}
}

func TestInit_EnvOverridesConfig(t *testing.T) {
	t.Setenv(EnvCategories, "tools")
	t.Setenv(EnvLevel, "ERROR")

	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
	withCategories(t, "")

	var buf bytes.Buffer
	Init(Options{Categories: "stream", Level: "DEBUG", Output: &buf})

	if Enabled("stream") || !Enabled("tools") {
		t.Errorf("categories = %v, want [tools]", Categories())
	}
	slog.Warn("filtered")
	if buf.Len() != 0 {
		t.Errorf("WARN emitted at ERROR level: %s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q", got)
	}
}
