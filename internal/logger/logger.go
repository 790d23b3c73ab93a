package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger.
// Levels: "debug", "info", "warn", "error" (case-insensitive); anything else means info.
// Empty logPath writes JSON to stdout, otherwise JSON goes to that file.
// Debug switches to the human-readable development encoder.
func NewLogger(logPath, logLevel string, debug bool) (*zap.SugaredLogger, error) {
	var level zap.AtomicLevel
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	} else {
		config.EncoderConfig = zap.NewProductionEncoderConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.Level = level

	if logPath == "" {
		logPath = "stdout"
	}
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{logPath}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
