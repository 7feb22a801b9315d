package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerProvider_DisabledBridgeReturnsBase(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{ServiceName: "jewel-ledger"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))

	var nilProvider *LoggerProvider
	assert.False(t, nilProvider.IsEnabled())
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}
	logger := zap.New(core).With(zap.String("pool", "STOCK"))

	logger.Debug("lookup")
	logger.Info("movement recorded")
	logger.Warn("outbox retry")
	logger.Error("audit found drift")

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "outbox retry", entries[0].Message)
	assert.Equal(t, "STOCK", entries[1].ContextMap()["pool"])
}
