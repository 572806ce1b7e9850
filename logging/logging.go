// Package logging provides the structured, leveled logging hook used by the
// submap engine to report space-carving telemetry and other diagnostics.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured, leveled logging interface consumed by the
// submap engine. Only the subset actually used by the core is exposed.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type impl struct {
	sugar *zap.SugaredLogger
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

// NewLogger returns a production Logger writing JSON-encoded entries at
// info level and above, named name.
func NewLogger(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	z, err := cfg.Build()
	if err != nil {
		// Config is static and known-valid; this can only fail on a broken
		// build environment, which is a programmer error, not a runtime one.
		panic(err)
	}
	return &impl{sugar: z.Named(name).Sugar()}
}

// NewTestLogger returns a Logger that writes through t.Log, for use in
// tests, mirroring rdk's logging.NewTestLogger(t) convention.
func NewTestLogger(t *testing.T) Logger {
	t.Helper()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&testWriter{t}),
		zapcore.DebugLevel,
	)
	return &impl{sugar: zap.New(core).Sugar()}
}

type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
