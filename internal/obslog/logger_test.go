package obslog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter(&buf)
	lg.SetLevel(LevelError)

	lg.Info("should not appear")
	lg.OK("should not appear either")
	lg.Warn("still nothing")
	assert.Empty(t, buf.String())

	err := lg.Error("boom")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Contains(t, buf.String(), "boom")
}

func TestOKOmitsLevelField(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter(&buf)
	lg.OK("provisioned sandbox assess-load_data")
	out := buf.String()
	assert.Contains(t, out, "provisioned sandbox assess-load_data")
	assert.False(t, strings.Contains(out, `"level"`))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelOK, ParseLevel("ok"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
}
