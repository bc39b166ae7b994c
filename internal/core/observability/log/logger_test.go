package log

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsReachCore(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewWithCore(core).With(String("component", "engine"))

	logger.Info("record saved",
		String("collection", "GameScore"),
		Int("ops", 3),
		Duration("took", 15*time.Millisecond),
		Strings("keys", []string{"score", "name"}),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "engine", ctx["component"])
	require.Equal(t, "GameScore", ctx["collection"])
	require.EqualValues(t, 3, ctx["ops"])
	require.Equal(t, "boom", ctx["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger := New(LevelWarn)
	require.Equal(t, LevelWarn, logger.GetLevel())
	require.False(t, logger.checkLevel(LevelInfo))
	require.True(t, logger.checkLevel(LevelError))

	logger.SetLevel(LevelDebug)
	require.Equal(t, LevelDebug, logger.GetLevel())
	require.True(t, logger.checkLevel(LevelDebug))
}

func TestLogger_Nop(t *testing.T) {
	logger := Nop()
	require.Equal(t, LevelSilent, logger.GetLevel())
	require.NotPanics(t, func() {
		logger.Error("discarded", Error(errors.New("x")))
	})
}

func TestProvide(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = New(LevelWarn)
		}()
		go func() {
			defer wg.Done()
			require.NotNil(t, Provide())
		}()
	}
	wg.Wait()

	first := Provide()
	_ = New(LevelDebug)
	require.Same(t, first, Provide())
}

func TestLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsync.log")
	logger := NewFromOptions(Options{
		Level:      LevelInfo,
		Encoding:   "console",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	logger.Info("written to file", String("path", path))
	require.NoError(t, logger.Sync())
	require.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelSilent, ParseLevel("off"))
	require.Equal(t, LevelInfo, ParseLevel("whatever"))
}
