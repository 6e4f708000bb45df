package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

var serviceName = "crypto-warren"

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init builds the process-wide zap logger. Call once from main before
// anything logs; the level string follows zapcore ("debug", "info", ...).
func Init(level string) error {
	cfg := zap.NewProductionConfig()

	l, err := zapcore.ParseLevel(level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(l)

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	log = built
	return nil
}

func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func Debug(format string, args ...interface{}) {
	if log == nil {
		panic("logger is not initialized")
	}
	log.With(zap.String("service", serviceName)).Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	if log == nil {
		panic("logger is not initialized")
	}
	log.With(zap.String("service", serviceName)).Info(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	if log == nil {
		panic("logger is not initialized")
	}
	log.With(zap.String("service", serviceName)).Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	if log == nil {
		panic("logger is not initialized")
	}
	log.With(zap.String("service", serviceName)).Fatal(fmt.Sprintf(format, args...))
}
