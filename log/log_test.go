// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestAppendUint64(t *testing.T) {
	tests := []struct {
		n    uint64
		neg  bool
		want string
	}{
		{0, false, "0"},
		{999, false, "999"},
		{99999, false, "99999"},
		{100000, false, "100,000"},
		{1234567, false, "1,234,567"},
		{1234567, true, "-1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(appendUint64(nil, tt.n, tt.neg)))
	}
}

func TestAppendInt64(t *testing.T) {
	assert.Equal(t, "-1,234,567", string(appendInt64(nil, -1234567)))
	assert.Equal(t, "42", string(appendInt64(nil, 42)))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "trace", LevelString(LevelTrace))
	assert.Equal(t, "crit", LevelString(LevelCrit))
	assert.Equal(t, "unknown", LevelString(slog.Level(7)))
}

func TestTerminalHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NewTerminalHandler(&buf, false))

	l.Info("updated operator weight", "operator", uint256.NewInt(12345), "block", uint64(1234567))

	out := buf.String()
	assert.Contains(t, out, "INFO ")
	assert.Contains(t, out, "updated operator weight")
	assert.Contains(t, out, "operator=12345")
	assert.Contains(t, out, "block=1,234,567")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTerminalHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(LevelWarn)
	l := NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false))

	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")

	lvl.Set(LevelTrace)
	l.Trace("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestWithContextTracksRoot(t *testing.T) {
	ctxLogger := WithContext("pkg", "registry")

	old := Root()
	defer SetDefault(old)

	var buf bytes.Buffer
	SetDefault(NewLogger(NewTerminalHandler(&buf, false)))

	ctxLogger.Info("head advanced", "block", uint64(7))

	out := buf.String()
	assert.Contains(t, out, "pkg=registry")
	assert.Contains(t, out, "block=7")
}

func TestJSONHandlerLevelKey(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(JSONHandler(&buf))

	l.Error("boom", "weight", uint256.NewInt(10))

	out := buf.String()
	assert.Contains(t, out, `"lvl":"error"`)
	assert.Contains(t, out, `"weight":"10"`)
	assert.Contains(t, out, `"t":`)
}

var sink []byte

func BenchmarkPrettyInt64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sink = appendInt64(buf, rand.Int63()) //#nosec G404
	}
}

func BenchmarkPrettyUint64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sink = appendUint64(buf, rand.Uint64(), false) //#nosec G404
	}
}
