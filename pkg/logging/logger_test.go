package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	for _, l := range []*Logger{New("debug"), NewText("info"), Default()} {
		if l == nil || l.Logger == nil {
			t.Fatal("logger not initialized")
		}
	}
}

func TestWithComponent(t *testing.T) {
	l := Default().WithComponent("appointments")
	if l == nil || l.Logger == nil {
		t.Fatal("component logger not initialized")
	}
}
