package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	fields []observability.Field
}

func (r *recorder) With(fields ...observability.Field) observability.Logger {
	return &recorder{fields: append(append([]observability.Field{}, r.fields...), fields...)}
}
func (r *recorder) Debug(string, ...observability.Field) {}
func (r *recorder) Info(string, ...observability.Field)  {}
func (r *recorder) Warn(string, ...observability.Field)  {}
func (r *recorder) Error(string, ...observability.Field) {}

func TestScopeNestsFields(t *testing.T) {
	base := &recorder{}
	ctx, _ := Scope(context.Background(), base, observability.F("request_id", "r-1"))
	ctx, l := Scope(ctx, base, observability.F("user_id", "u-1"))

	assert.Equal(t, []observability.Field{
		observability.F("request_id", "r-1"),
		observability.F("user_id", "u-1"),
	}, l.(*recorder).fields)
	assert.Same(t, l, From(ctx))
}

func TestFromOrFallsBack(t *testing.T) {
	base := &recorder{}
	assert.Same(t, base, FromOr(context.Background(), base))
	assert.NotNil(t, FromOr(context.Background(), nil))
	assert.Nil(t, From(context.Background()))
}
