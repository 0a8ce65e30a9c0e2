package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger = zap.NewNop()

func Get() *zap.Logger {
	return defaultLogger
}

// Options control the logger built by Configure.
type Options struct {
	Enabled bool
	Path    string
	Verbose bool
	// JSON switches the encoder from console to JSON.
	JSON bool
}

// Configure replaces the default logger. A disabled configuration
// keeps the Nop logger so library code can log unconditionally.
func Configure(opts Options) (*zap.Logger, error) {
	if !opts.Enabled {
		defaultLogger = zap.NewNop()
		return defaultLogger, nil
	}

	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	output := []string{"stderr"}
	if opts.Path != "" {
		output = []string{opts.Path}
	}

	encoding := "console"
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if opts.JSON {
		encoding = "json"
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      opts.Verbose,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      output,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	defaultLogger = logger
	return logger, nil
}

func Flush() {
	_ = defaultLogger.Sync()
}
