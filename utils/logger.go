package utils

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cppla/ecorecycle/config"
)

var (
	// Logger is the process logger; nil until InitLogger runs.
	Logger *zap.Logger
	// Sugar is Logger.Sugar().
	Sugar *zap.SugaredLogger
)

// InitLogger installs the process logger: JSON to stdout, plus a rotated
// file at cfg.LogPath when set.
func InitLogger(cfg config.AppConfig) error {
	level := parseLevel(cfg.LogLevel)
	enc := zapcore.NewJSONEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level),
	}
	if cfg.LogPath != "" {
		sink, err := rollingSink(cfg.LogPath, cfg)
		if err != nil {
			return err
		}
		// the file keeps warnings even when stdout is quieter
		cores = append(cores, zapcore.NewCore(enc, sink, min(level, zapcore.WarnLevel)))
	}

	opts := []zap.Option{zap.AddCaller()}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.Development())
	}
	Logger = zap.New(zapcore.NewTee(cores...), opts...)
	Sugar = Logger.Sugar()
	return nil
}

// Named returns a component logger, or a no-op one before InitLogger ran.
func Named(name string) *zap.SugaredLogger {
	if Logger == nil {
		return zap.NewNop().Sugar()
	}
	return Logger.Named(name).Sugar()
}

// NewAccessLogger builds the file-only request logger at cfg.GinPath.
func NewAccessLogger(cfg config.AppConfig) (*zap.Logger, error) {
	sink, err := rollingSink(cfg.GinPath, cfg)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, parseLevel(cfg.LogLevel))
	return zap.New(core), nil
}

func rollingSink(path string, cfg config.AppConfig) (zapcore.WriteSyncer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.LogMaxSizeMB, 100),
		MaxBackups: orDefault(cfg.LogMaxBackups, 3),
		MaxAge:     orDefault(cfg.LogMaxAgeDays, 7),
		Compress:   cfg.LogCompress,
	}), nil
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	enc.EncodeDuration = zapcore.SecondsDurationEncoder
	return enc
}

// parseLevel maps a config level name to zap; unknown names mean info.
func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
