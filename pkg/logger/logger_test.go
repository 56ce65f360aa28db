package logger

import "testing"

func TestLogger_BasicLevels(t *testing.T) {
	l := New("debug")
	if l == nil {
		t.Fatalf("logger nil")
	}
	l.Debug("dbg", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("err")
}

func TestLogger_NopDiscards(t *testing.T) {
	l := NewNop()
	l.Info("discarded", "k", "v")
	l.Error("discarded too")
}
