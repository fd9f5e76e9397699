package litecore_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	litecore "github.com/nekogakure/liteCore"
)

func TestSentinels_WrapAndMatch(t *testing.T) {
	err := fmt.Errorf("%w: block 42 unreadable", litecore.ErrIO)
	assert.ErrorIs(t, err, litecore.ErrIO)
	assert.NotErrorIs(t, err, litecore.ErrNotFound)
}

func TestLogger_AttachesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := litecore.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.WithDrive(1).WithBlock(7).Debug("read miss")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "drive=1")
	assert.Contains(t, out, "block=7")
	assert.Contains(t, out, "read miss")
}

func TestNoopLogger_DiscardsEverything(t *testing.T) {
	logger := litecore.NoopLogger()
	logger.Error("should vanish")
	assert.NotNil(t, logger)
}
