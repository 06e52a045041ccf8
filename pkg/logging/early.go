package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewEarlyLogger returns a console logger on stderr for the startup steps that
// run before the configured logger exists. It never exits the process.
func NewEarlyLogger(serviceName string) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)
	return newEarlyLogger(core, serviceName)
}

func newEarlyLogger(core zapcore.Core, serviceName string) *zap.SugaredLogger {
	return zap.New(core).With(zap.String("service_name", serviceName)).Sugar()
}
