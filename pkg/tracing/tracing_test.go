package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanAndFinish(t *testing.T) {
	tracer := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })

	span, ctx := StartSpan(context.Background(), "executor.place_trade", opentracing.Tags{"pair": "EURUSD"})
	require.NotNil(t, opentracing.SpanFromContext(ctx))
	Finish(span, errors.New("rejected"))

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "executor.place_trade", spans[0].OperationName)
	assert.Equal(t, "EURUSD", spans[0].Tag("pair"))
	assert.Equal(t, true, spans[0].Tag("error"))
}
