// Package logging builds the daemon's zap logger.
package logging

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is the value of the service field on every entry.
const Service = "enclosure-alarm"

// New creates a logger at level ("debug", "info", "warn", "error").
// format "json" writes production JSON to stdout; "console" writes
// human-readable development output. Every entry carries the service name,
// the host name and a boot id that is unique per process start.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	default:
		return nil, fmt.Errorf("log format %q: want json or console", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.With(Fields()...), nil
}

// Fields returns the fields attached to every entry.
func Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("service", Service),
		zap.String("boot_id", bootID),
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		fields = append(fields, zap.String("hostname", host))
	}
	return fields
}

var bootID = uuid.NewString()

// BootID returns the id attached to this process's entries.
func BootID() string {
	return bootID
}
