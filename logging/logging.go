package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"go-sniper/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Setup configures the package-level logrus logger. The returned closer
// flushes the rotating file, if any.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}
	logrus.SetFormatter(formatter)

	if cfg.File == "" {
		logrus.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		}, nil
	case "text", "":
		return &logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
