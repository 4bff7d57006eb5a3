package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewWithWritersLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriters(false, &buf)
	log.Debug("hidden")
	log.Info("session started", zap.String("person_id", "jake"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "session started")
	assert.Contains(t, out, `"person_id": "jake"`)

	buf.Reset()
	NewWithWriters(true, &buf).Debug("visible")
	assert.Contains(t, buf.String(), "DEBUG")
}
