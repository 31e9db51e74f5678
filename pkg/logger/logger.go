package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InfoLogger/FatalLogger: процессные логгеры для printf-хелперов ниже.
// Компоненты получают *zap.Logger через fx и пишут структурные поля.
var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

type Config struct {
	Level       string
	Development bool
}

// New собирает логгер с AtomicLevel, уровень можно менять на лету.
// Заодно инициализирует InfoLogger и FatalLogger.
func New(cfg Config) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, level, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = level
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zc.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return nil, level, fmt.Errorf("build logger: %w", err)
	}

	InfoLogger = l.WithOptions(zap.AddCallerSkip(1))
	FatalLogger = InfoLogger
	return l, level, nil
}

// SetLevel меняет уровень; неизвестное значение игнорируется с ошибкой в лог.
func SetLevel(level zap.AtomicLevel, text string) {
	prev := level.Level()
	if err := level.UnmarshalText([]byte(text)); err != nil {
		Error("ignore log level %q: %v", text, err)
		return
	}
	if prev != level.Level() {
		Info("log level changed %s -> %s", prev, level.Level())
	}
}

func Info(format string, args ...interface{}) {
	logf(InfoLogger, "InfoLogger", zapcore.InfoLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	logf(InfoLogger, "InfoLogger", zapcore.ErrorLevel, format, args...)
}

func Fatal(format string, args ...interface{}) {
	logf(FatalLogger, "FatalLogger", zapcore.FatalLevel, format, args...)
}

func logf(l *zap.Logger, name string, lvl zapcore.Level, format string, args ...interface{}) {
	if l == nil {
		panic(name + " is not initialized")
	}
	if ce := l.Check(lvl, fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}
