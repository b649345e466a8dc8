package observability

import (
	"testing"

	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistryExposesInstruments(t *testing.T) {
	reg := prometrics.NewBare("")
	tel := NewWithRegistry(nil, nil, reg)

	tel.Metrics().Counter(observability.MWebhookEvents).Add(1,
		observability.L("type", "checkout.session.completed"),
		observability.L("outcome", "confirmed"),
	)
	tel.Metrics().Counter(observability.MWebhookEvents).Bind(
		observability.L("type", "checkout.session.expired"),
		observability.L("outcome", "expired"),
	).Add(2)
	tel.Metrics().Histogram(observability.MHTTPRequestDuration).Observe(0.02,
		observability.L("method", "GET"),
		observability.L("route", "/products"),
		observability.L("status", "200"),
	)

	n, err := testutil.GatherAndCount(reg.Gatherer(), string(observability.MWebhookEvents))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(reg.Gatherer(), string(observability.MHTTPRequestDuration))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilPartsAreNop(t *testing.T) {
	tel := New(nil, nil, nil)
	assert.NotPanics(t, func() {
		tel.Metrics().Counter("nope").Add(1)
		tel.Metrics().Histogram("nope").Bind().Observe(1)
		tel.Logger().Info("ignored")
	})
}

func TestUnknownKeyIsNop(t *testing.T) {
	tel := NewWithRegistry(nil, nil, prometrics.NewBare(""))
	assert.NotPanics(t, func() { tel.Metrics().Counter("nope").Add(1) })
}
