// internal/logger/logger.go
package logger

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config задаёт вывод логов.
type Config struct {
	// File is the rotating JSON log. Empty disables the file core.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Debug      bool
	// Quiet disables the console core, for when the dashboard owns the terminal.
	Quiet bool
}

// DefaultConfig returns a 50MB x 5 rotation under logs/.
func DefaultConfig() Config {
	return Config{
		File:       "logs/pump-sniper.log",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// Logger расширяет zap.Logger хелперами корреляции.
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

// New builds the process logger. Extra cores (the dashboard ring) are teed
// in next to the console and file cores.
func New(cfg Config, extra ...zapcore.Core) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var cores []zapcore.Core
	if !cfg.Quiet {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stdout),
			level))
	}

	l := &Logger{}
	if cfg.File != "" {
		l.rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(l.rotator),
			level))
	}
	cores = append(cores, extra...)
	if len(cores) == 0 {
		return nil, errors.New("logger has no outputs")
	}

	l.Logger = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

// WithOperation создаёт логгер операции с correlation id.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
		zap.Time("start_time", time.Now().UTC()),
	)
}

// WithTransaction добавляет контекст транзакции к логам.
func (l *Logger) WithTransaction(signature string) *zap.Logger {
	return l.With(zap.String("signature", signature))
}

// Sync flushes the cores and ignores the errors stdout returns on terminals.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

// Close syncs and closes the rotating file.
func (l *Logger) Close() error {
	err := l.Sync()
	if l.rotator != nil {
		err = errors.Join(err, l.rotator.Close())
	}
	return err
}
