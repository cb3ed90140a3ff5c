package main

import (
	"log/slog"
	"os"
	"strings"

	"tinylsm/pkg/config"
)

// initConfig загружает конфиг из файла YAML. Если файл не найден, возвращается config.Default().
func initConfig(path string) (config.Config, error) {
	return config.Load(path)
}

// initLogger настраивает глобальный slog.Logger (JSON или текстовый).
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logger.Level))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", level, "json", cfg.Logger.JSON)
	return logger
}
