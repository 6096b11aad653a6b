package tdms

import "go.uber.org/zap"

// Logger receives structured debug events emitted while parsing and
// reading a TDMS file. The reader owns no logger of its own; callers wire
// one in with [WithLogger]. The zero value of any implementation must be
// safe to use as a no-op.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
}

// noopLogger discards every event. It is the default when no logger is
// configured.
type noopLogger struct{}

func (noopLogger) Debugw(string, ...any) {}

// ZapLogger adapts a [zap.SugaredLogger] to [Logger].
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps sugar as a [Logger].
func NewZapLogger(sugar *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{sugar: sugar}
}

func (z *ZapLogger) Debugw(msg string, keysAndValues ...any) {
	if z == nil || z.sugar == nil {
		return
	}
	z.sugar.Debugw(msg, keysAndValues...)
}
