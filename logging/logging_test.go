package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-sniper/config"
)

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sniper.log")
	closer, err := Setup(config.LogConfig{Level: "debug", Format: "json", File: path, MaxSize: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	})

	logrus.Debugf("Rendered %s", "sniper -t example.com -m normal")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Rendered sniper -t example.com -m normal"`)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestSetupErrors(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = Setup(config.LogConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")
}
