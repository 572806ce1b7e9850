package logging

import "testing"

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	logger.Infow("hello", "key", "value")
	logger.Debugw("debug message")
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("submap-test")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}
