// internal/logger/file.go
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig описывает ротацию файла логов.
type FileConfig struct {
	LogFile    string
	MaxSize    int  // мегабайты
	MaxAge     int  // дни
	MaxBackups int  // количество файлов
	Compress   bool // сжимать ротированные файлы
}

// DefaultFileConfig возвращает конфигурацию по умолчанию
func DefaultFileConfig() FileConfig {
	return FileConfig{
		LogFile:    "txsender.log",
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}

// NewFile creates a JSON logger writing to a rotated file. Used while the
// terminal belongs to the progress UI.
func NewFile(cfg FileConfig, debug bool) (*zap.Logger, func() error) {
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
	return zap.New(core), rotator.Close
}
