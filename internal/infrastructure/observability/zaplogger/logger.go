// Package zaplogger adapts zap to observability.Logger.
package zaplogger

import (
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"go.uber.org/zap"
)

type Logger struct{ z *zap.Logger }

// New wraps z; a nil z discards everything. fixed fields are attached to every line.
func New(z *zap.Logger, fixed ...observability.Field) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	if len(fixed) > 0 {
		z = z.With(fields(fixed)...)
	}
	return &Logger{z: z}
}

func (l *Logger) With(fs ...observability.Field) observability.Logger {
	if len(fs) == 0 {
		return l
	}
	return &Logger{z: l.z.With(fields(fs)...)}
}

func (l *Logger) Debug(msg string, fs ...observability.Field) { l.z.Debug(msg, fields(fs)...) }
func (l *Logger) Info(msg string, fs ...observability.Field)  { l.z.Info(msg, fields(fs)...) }
func (l *Logger) Warn(msg string, fs ...observability.Field)  { l.z.Warn(msg, fields(fs)...) }
func (l *Logger) Error(msg string, fs ...observability.Field) { l.z.Error(msg, fields(fs)...) }

// fields picks a typed zap field where one exists. Money (decimal.Decimal) and IDs that implement
// fmt.Stringer are written as strings so JSON output keeps full precision.
func fields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		switch v := f.Value.(type) {
		case nil:
			out = append(out, zap.Skip())
		case string:
			out = append(out, zap.String(f.Key, v))
		case int:
			out = append(out, zap.Int(f.Key, v))
		case int64:
			out = append(out, zap.Int64(f.Key, v))
		case float64:
			out = append(out, zap.Float64(f.Key, v))
		case bool:
			out = append(out, zap.Bool(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case time.Time:
			out = append(out, zap.Time(f.Key, v))
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		case fmt.Stringer:
			out = append(out, zap.Stringer(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}
