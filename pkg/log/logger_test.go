package log

import (
	"bytes"
	"encoding/json"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func TestZerologWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerolog(&buf)
	l.Warnf("domain %d exceeds %d", 9, 8)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "domain 9 exceeds 8", rec["message"])
}

func TestSetFormat(t *testing.T) {
	defer func() { DefaultLogger = klogWrapper{} }()

	require.NoError(t, SetFormat("json"))
	_, ok := DefaultLogger.(zerologWrapper)
	assert.True(t, ok)

	require.NoError(t, SetFormat("text"))
	_, ok = DefaultLogger.(klogWrapper)
	assert.True(t, ok)

	assert.Error(t, SetFormat("xml"))
}

func TestZerologDebugFollowsVerbosity(t *testing.T) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	defer func() { _ = fs.Set("v", "0") }()

	var buf bytes.Buffer
	l := NewZerolog(&buf)

	require.NoError(t, fs.Set("v", "0"))
	l.Debugf("LBIS %s", "ReadLatency")
	assert.Empty(t, buf.String())

	require.NoError(t, fs.Set("v", "4"))
	l.Debugf("LBIS %s", "ReadLatency")
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "LBIS ReadLatency", rec["message"])
}
