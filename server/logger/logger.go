package logger

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the server's logger. Dev mode logs coloured, human
// readable lines at debug level; otherwise JSON at info level.
func NewLogger(devMode bool) *zap.SugaredLogger {
	config := zap.NewProductionConfig()
	if devMode {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		log.Panic(err)
	}

	return logger.Named("rolodex").Sugar()
}
