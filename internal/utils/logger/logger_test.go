package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestLoggerRedactsEmailAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("prod", &buf)

	log.Info("enrolled", slog.String("email", "student@school.edu"), slog.String("course_id", "abc"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "st***@school.edu", entry["email"])
	assert.Equal(t, "abc", entry["course_id"])
}

func TestProdLoggerSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("prod", &buf)

	log.Debug("noisy")
	assert.Empty(t, buf.String())

	log = NewWithWriter("dev", &buf)
	log.Debug("noisy")
	assert.Contains(t, buf.String(), "noisy")
}
