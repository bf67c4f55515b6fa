package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevelAliases(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q)=%v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "true")
	t.Setenv(EnvLogBypass, "1")
	t.Setenv(EnvLogNoColor, "maybe")

	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || !cfg.Timestamp || !cfg.Bypass {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if !cfg.NoColor {
		t.Fatalf("invalid bool must keep profile default")
	}
}

func TestNewBypassWritesJSON(t *testing.T) {
	var out bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, Bypass: true, Out: &out})
	logger.Debug().Msg("hidden")
	logger.Info().Str("store", "/var/lib/gromox/user/alice").Msg("ping")

	line := out.String()
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line should be filtered: %q", line)
	}
	if !strings.Contains(line, `"store":"/var/lib/gromox/user/alice"`) {
		t.Fatalf("expected structured field, got %q", line)
	}
}
