package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level string, format OutputFormat, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger(level, format)

	fn()

	return buf.String()
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func()
		contains []string
		excludes []string
	}{
		{
			name:  "info log",
			level: "info",
			logFn: func() {
				Info("asset admitted")
			},
			contains: []string{"asset admitted"},
		},
		{
			name:  "debug log with debug level",
			level: "debug",
			logFn: func() {
				Debug("transfer spawned")
			},
			contains: []string{"transfer spawned", "level=DEBUG"},
		},
		{
			name:  "debug log with info level",
			level: "info",
			logFn: func() {
				Debug("transfer spawned")
			},
			excludes: []string{"transfer spawned"},
		},
		{
			name:  "error log",
			level: "error",
			logFn: func() {
				Error("transfer failed")
			},
			contains: []string{"transfer failed", "level=ERROR"},
		},
		{
			name:  "warn log with fields",
			level: "warn",
			logFn: func() {
				Warn("subscriber panicked", Fields{"event": "progress", "count": 2})
			},
			contains: []string{"subscriber panicked", "level=WARN", "event=progress", "count=2"},
		},
		{
			name:  "success log",
			level: "info",
			logFn: func() {
				Success("preload finished")
			},
			contains: []string{"preload finished", "status=success"},
		},
		{
			name:  "formatted debug with fields",
			level: "debug",
			logFn: func() {
				DebugfWithFields(Fields{"token": 1}, "asset %d in flight", 1)
			},
			contains: []string{"asset 1 in flight", "token=1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureOutput(t, tt.level, FormatText, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, output, want)
			}
			for _, notWant := range tt.excludes {
				assert.NotContains(t, output, notWant)
			}
		})
	}
}

func TestGetLogger_InitializesIfNil(t *testing.T) {
	logger = nil
	assert.NotPanics(t, func() {
		lg := GetLogger()
		assert.NotNil(t, lg)
	})
}

func TestSetOutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger("debug", FormatText)
	Info("test message 1")
	assert.Contains(t, buf.String(), "test message 1")
	assert.Contains(t, buf.String(), "INFO")

	buf.Reset()
	SetOutputFormat(FormatJSON)
	Debug("test message 2")
	assert.Contains(t, buf.String(), `"msg":"test message 2"`)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestJSONFormat(t *testing.T) {
	output := captureOutput(t, "info", FormatJSON, func() {
		Info("asset fetched", Fields{
			"url":   "http://example.com/a.mp4",
			"bytes": 42,
			"ok":    true,
		})
	})

	assert.Contains(t, output, `"msg":"asset fetched"`)
	assert.Contains(t, output, `"url":"http://example.com/a.mp4"`)
	assert.Contains(t, output, `"bytes":42`)
	assert.Contains(t, output, `"ok":true`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("warning").String())
	assert.Equal(t, "ERROR", ParseLevel("ERROR").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}

func TestMergeFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []Fields
		expect map[string]interface{}
	}{
		{
			name:   "single field",
			fields: []Fields{{"key1": "value1"}},
			expect: map[string]interface{}{"key1": "value1"},
		},
		{
			name:   "multiple fields",
			fields: []Fields{{"key1": "value1"}, {"key2": 123, "key3": true}},
			expect: map[string]interface{}{"key1": "value1", "key2": 123, "key3": true},
		},
		{
			name:   "overwrite fields",
			fields: []Fields{{"key1": "value1"}, {"key1": "new value", "key2": 123}},
			expect: map[string]interface{}{"key1": "new value", "key2": 123},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := mergeFields(tt.fields...)
			result := make(map[string]interface{})
			for i := 0; i < len(attrs); i += 2 {
				result[attrs[i].(string)] = attrs[i+1]
			}
			assert.Equal(t, tt.expect, result)
		})
	}
}
