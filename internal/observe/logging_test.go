// file: internal/observe/logging_test.go

package observe

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInitLoggerTo_HotReloadLevel(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	InitLoggerTo(&buf, "warn")

	slog.Info("不应输出")
	assert.Zero(t, buf.Len())

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, Level())
	buf.Reset()

	slog.Debug("分页已获取", "offset", 100)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "分页已获取", entry["msg"])
	assert.Equal(t, float64(100), entry["offset"])
	assert.Contains(t, entry, "source")
}
