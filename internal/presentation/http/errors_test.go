package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability/zaplogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGatewayErrorsKeepProviderDetailInLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	detail := "stripe: Invalid API Key provided: sk_test_****1234"
	err := fmt.Errorf("%w: %w", payment.ErrGatewayUnavailable, errors.New(detail))

	rec := httptest.NewRecorder()
	writeDomainError(context.Background(), rec, zaplogger.New(zap.New(core)), err)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, KindGatewayUnavailable, body.Kind)
	assert.NotContains(t, body.Error, "stripe")
	assert.NotContains(t, body.Error, "sk_test")

	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["error"], detail)
}
