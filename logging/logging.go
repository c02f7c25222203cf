// Package logging builds the zap logger used by the command line tool.
// Logs always go to stderr; stdout is reserved for the run result.
package logging

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log format and level.
type Config struct {
	JSON  bool   `yaml:"json"`
	Level string `yaml:"level"`
}

// DefaultConfig logs info and above in console format.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// New builds a logger writing to stderr.
func New(config Config) (*zap.SugaredLogger, error) {
	return NewWriter(config, os.Stderr)
}

// NewWriter builds a logger writing to w.
func NewWriter(config Config, w io.Writer) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if config.Level != "" {
		parsed, err := zapcore.ParseLevel(config.Level)
		if err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(err, "invalid log level %q", config.Level),
				"use debug, info, warn or error",
			)
		}
		level = parsed
	}

	var encoder zapcore.Encoder
	if config.JSON {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core).Sugar(), nil
}
