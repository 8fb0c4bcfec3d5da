package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env, level string
		wantErr    bool
		enabled    zapcore.Level
	}{
		{"prod", "", false, zapcore.InfoLevel},
		{"local", "warn", false, zapcore.WarnLevel},
		{"dev", "debug", false, zapcore.DebugLevel},
		{"staging", "", true, 0},
		{"local", "loud", true, 0},
	}
	for _, tt := range tests {
		l, err := NewLogger(tt.env, tt.level)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewLogger(%q, %q): expected error", tt.env, tt.level)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewLogger(%q, %q): %v", tt.env, tt.level, err)
		}
		if !l.Core().Enabled(tt.enabled) {
			t.Errorf("NewLogger(%q, %q): level %v not enabled", tt.env, tt.level, tt.enabled)
		}
		if tt.enabled > zapcore.DebugLevel && l.Core().Enabled(tt.enabled-1) {
			t.Errorf("NewLogger(%q, %q): level below %v enabled", tt.env, tt.level, tt.enabled)
		}
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil without a logger")
	}
	l := zap.NewExample()
	if got := FromContext(ContextWithLogger(context.Background(), l)); got != l {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("request_id", "r1"))

	FromContext(ctx).Info("correlation finished")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "r1" {
		t.Errorf("request_id = %v, want r1", got)
	}
}

func TestFromContextNilLogger(t *testing.T) {
	ctx := ContextWithLogger(context.Background(), nil)
	FromContext(ctx).Info("no panic on nil")
	// With on an empty context must not panic either.
	FromContext(With(context.Background(), zap.Int("n", 1))).Debug("ok")
}
