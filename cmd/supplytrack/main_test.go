package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// syncCounter records flushes on top of an observed core.
type syncCounter struct {
	zapcore.Core
	syncs *int
}

func (c syncCounter) With(fields []zapcore.Field) zapcore.Core {
	return syncCounter{Core: c.Core.With(fields), syncs: c.syncs}
}

func (c syncCounter) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c syncCounter) Sync() error {
	*c.syncs++
	return c.Core.Sync()
}

func newCountingLogger() (*zap.Logger, *observer.ObservedLogs, *int) {
	core, logs := observer.New(zap.InfoLevel)
	syncs := 0
	return zap.New(syncCounter{Core: core, syncs: &syncs}), logs, &syncs
}

func TestFinish_FlushesAndFailsOnError(t *testing.T) {
	logger, logs, syncs := newCountingLogger()

	code := finish(logger, errors.New("failed to connect to database"))

	assert.Equal(t, 1, code)
	assert.Equal(t, 1, *syncs)
	entries := logs.FilterMessage("supplytrack stopped").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "failed to connect to database", entries[0].ContextMap()["error"])
	}
}

func TestFinish_CleanShutdown(t *testing.T) {
	logger, logs, syncs := newCountingLogger()

	assert.Equal(t, 0, finish(logger, nil))
	assert.Equal(t, 1, *syncs)
	assert.Zero(t, logs.Len())
}
