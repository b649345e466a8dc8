package zaplogger

import (
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerCarriesFixedAndScopedFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core), observability.F("component", "test"))

	scoped := l.With(observability.F("order_id", "o-1"))
	scoped.Warn("reservation_expired",
		observability.F("quantity", 3),
		observability.F("total", decimal.RequireFromString("12.50")),
		observability.F("ttl", 30*time.Minute),
		observability.Err(errors.New("session expired")),
	)
	l.Info("plain")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, first.Level)
	fields := first.ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "o-1", fields["order_id"])
	assert.EqualValues(t, 3, fields["quantity"])
	assert.Equal(t, "12.5", fields["total"])
	assert.Equal(t, 30*time.Minute, fields["ttl"])
	assert.Equal(t, "session expired", fields["error"])

	assert.NotContains(t, logs.All()[1].ContextMap(), "order_id")
}

func TestNilErrorAndNilZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	New(zap.New(core)).Info("ok", observability.Err(nil), observability.F("none", nil))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "", logs.All()[0].ContextMap()["error"])
	assert.NotContains(t, logs.All()[0].ContextMap(), "none")

	assert.NotPanics(t, func() { New(nil).Error("ignored") })
}
