package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/fsnotify/fsnotify"
	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ProvideLogger builds the process logger. The level is hot-swappable
// through the config file watcher.
func ProvideLogger(cfg *config.Config, lc fx.Lifecycle) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		// [ROTATION] Bounded on-disk footprint for long-running nodes.
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return lj.Close() }})
		out = lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler).With(
		"service", ServiceName,
		"version", version,
	)
	slog.SetDefault(logger)

	cfg.OnChange(func(e fsnotify.Event, next string) {
		if err := level.UnmarshalText([]byte(next)); err != nil {
			logger.Warn("CONFIG_RELOAD_REJECTED", "file", e.Name, "log_level", next, "err", err)
			return
		}
		logger.Info("CONFIG_RELOADED", "file", e.Name, "log_level", level.Level().String())
	})

	return logger, nil
}

// ProvideWatermillLogger routes watermill's internal logs through slog.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}
