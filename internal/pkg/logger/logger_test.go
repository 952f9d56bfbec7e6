package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(INFO)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARN "))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLog_FieldsAndLevelFilter(t *testing.T) {
	buf := capture(t)

	Debug("hidden")
	Info("import analyzed", "import_id", "imp-1", "rows", 3)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "import analyzed", entry["msg"])
	assert.Equal(t, "imp-1", entry["import_id"])
	assert.Equal(t, "3", entry["rows"])
}

func TestNamed_AddsComponent(t *testing.T) {
	buf := capture(t)

	Named("worker").Warn("stale import", "import_id", "imp-2")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "WARN", entry["level"])
}

func TestLog_RedactsEmails(t *testing.T) {
	buf := capture(t)

	Info("uploaded", "uploaded_by", "maria.lopez@example.com")
	assert.Contains(t, buf.String(), "ma***@example.com")
	assert.NotContains(t, buf.String(), "maria.lopez@")
}
