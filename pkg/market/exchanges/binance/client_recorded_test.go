package binance

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
)

// This test uses go-vcr to record/replay a real klines call.
// It skips by default if cassette is absent and RECORD_CASSETTES != 1.
func TestClient_GetKlines_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "binance_klines.yaml")
	if _, err := os.Stat(cassette); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		// Ensure parent directory exists for recording
		err := os.MkdirAll(filepath.Dir(cassette), 0o755)
		assert.NoError(t, err, "mkdir cassettes dir should succeed")
	}

	r, err := recorder.New(cassette)
	assert.NoError(t, err, "recorder.New should not error")
	assert.NotNil(t, r, "recorder should not be nil")
	defer func() { _ = r.Stop() }()

	httpClient := &http.Client{Transport: r}
	client := NewClient(WithHTTPClient(httpClient))
	ctx := context.Background()
	klines, err := client.GetKlines(ctx, "BTCUSDT", "1m", 0, 0, 5)
	assert.NoError(t, err, "GetKlines should not error")
	assert.NotEmpty(t, klines, "klines should not be empty")
	for _, k := range klines {
		assert.Greater(t, k.High+1e-12, k.Low, "high should not be below low")
		assert.Greater(t, k.OpenTime, int64(0), "open time should be positive")
	}
}
