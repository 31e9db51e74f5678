package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"signal_bot/internal/models"
)

type stubAdapter struct {
	verifyErr error
}

func (s stubAdapter) VerifyDashboard(context.Context) (models.DashboardState, error) {
	if s.verifyErr != nil {
		return models.DashboardNotReady, s.verifyErr
	}
	return models.DashboardReady, nil
}

func (s stubAdapter) PlaceTrade(context.Context, models.TradeRequest) (models.Placement, error) {
	return models.PlacementRejected, nil
}

func (s stubAdapter) ReadLastResult(context.Context, time.Duration) (models.TradeResult, error) {
	return models.ResultWon, nil
}

func TestTraced(t *testing.T) {
	tracer := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })

	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewTraced(stubAdapter{verifyErr: errors.New("boom")}, zap.New(core))
	ctx := context.Background()

	_, err := tr.VerifyDashboard(ctx)
	assert.Error(t, err)
	_, err = tr.PlaceTrade(ctx, models.TradeRequest{Pair: "EURUSD", Direction: models.DirectionBuy, Level: 1})
	require.NoError(t, err)
	_, err = tr.ReadLastResult(ctx, time.Second)
	require.NoError(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "executor.verify_dashboard", spans[0].OperationName)
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Equal(t, "EURUSD", spans[1].Tag("pair"))
	assert.Equal(t, "REJECTED", spans[1].Tag("placement"))
	assert.Equal(t, "WON", spans[2].Tag("result"))

	assert.Equal(t, 1, logs.FilterMessage("adapter call failed").Len())
	// REJECTED пишется warning, WON: info
	assert.Equal(t, 1, logs.FilterMessage("adapter call").FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("adapter call").FilterLevelExact(zapcore.InfoLevel).Len())
}
