package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf)).With("feed", "eth-usd")

	l.Info("Aggregator confirmed",
		"aggregator", common.HexToAddress("0xa1"),
		"error", errors.New("boom"),
		"round", 17,
		42, "dropped")

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Aggregator confirmed", entry["message"])
	assert.Equal(t, "eth-usd", entry["feed"])
	assert.Equal(t, common.HexToAddress("0xa1").Hex(), entry["aggregator"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, float64(17), entry["round"])
	assert.NotContains(t, entry, "42")
}

func TestLogger_OddFieldsIgnored(t *testing.T) {
	var buf bytes.Buffer
	New(zerolog.New(&buf)).Warn("Odd", "key")

	entry := decode(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.NotContains(t, entry, "key")
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedproxy.log")

	l, err := Init("debug", "json", path)
	require.NoError(t, err)
	l.Debug("Written to file", "feed", "btc-usd")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"feed":"btc-usd"`)
}

func TestInit_BadOutput(t *testing.T) {
	_, err := Init("info", "json", filepath.Join(t.TempDir(), "missing", "feedproxy.log"))
	assert.Error(t, err)
}

func TestGlobal(t *testing.T) {
	defer SetGlobal(nil)

	SetGlobal(nil)
	require.NotNil(t, Global())

	l := NewNoopLogger()
	SetGlobal(l)
	assert.Same(t, l, Global())
}
