package journal

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteRun(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.nowFn = func() time.Time { return time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC) }

	path, err := w.WriteRun(&RunRecord{
		RunID:     "run-1",
		Trigger:   "manual",
		Succeeded: 2,
		Assets: []AssetRecord{
			{Asset: "BTCUSDT", Mode: "append", SessionsBuilt: 2, ReportsPublished: 27},
			{Asset: "ETHUSDT", Mode: "up_to_date"},
		},
	})
	require.NoError(t, err)
	require.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got RunRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Assets, 2)
	require.Equal(t, "append", got.Assets[0].Mode)
	require.False(t, got.StartedAt.IsZero())
}

func TestWriteRunNil(t *testing.T) {
	w := NewWriter(t.TempDir())
	_, err := w.WriteRun(nil)
	require.Error(t, err)
}
