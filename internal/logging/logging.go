// Package logging builds the zap logger used by the CLI and the MCP server.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DefaultConfig logs at info to stderr, leaving stdout to command output.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// New creates a logger writing to cfg.Output. The returned close func
// releases the output file, if any, and must be called once logging is done.
func New(cfg Config) (*zap.Logger, func(), error) {
	ws, closeOutput, err := openWriter(cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	logger, err := NewWithWriter(cfg, ws)
	if err != nil {
		closeOutput()
		return nil, nil, err
	}
	return logger, closeOutput, nil
}

// IsStdout reports whether output names standard output.
func IsStdout(output string) bool {
	return strings.EqualFold(output, "stdout")
}

// NewWithWriter is New with an explicit sink; cfg.Output is ignored.
func NewWithWriter(cfg Config, ws zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(encoder, ws, level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// ParseLevel converts a level name. The empty string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func newEncoder(format string) (zapcore.Encoder, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	switch strings.ToLower(format) {
	case "", "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// openWriter resolves stdout, stderr or a file path through zap.Open.
func openWriter(output string) (zapcore.WriteSyncer, func(), error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		output = "stderr"
	case "stdout":
		output = "stdout"
	}
	ws, closeOutput, err := zap.Open(output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return ws, closeOutput, nil
}
