package cliutil

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog"
)

type LoggingConfig struct {
	LogFile   string `envconfig:"LOG_FILE"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	LogLevel  int64  `envconfig:"LOG_LEVEL" default:"1" validate:"min=-1,max=5"`
}

// RegisterLoggingFlags lets flags override values already loaded from the
// environment.
func RegisterLoggingFlags(fs *flag.FlagSet, config *LoggingConfig) {
	fs.StringVar(&config.LogFile, "log", config.LogFile, "Path to the log file. If empty, will log to stderr")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "Logging format. 'text' or 'json'")
	fs.Int64Var(&config.LogLevel, "log-level", config.LogLevel, "Log level. -1 - trace, 0 - debug, 1 - info, 5 - panic")
}

// SetupLogging builds the zerolog logger described by config, attaches it
// to ctx, and routes log/slog through it.
func SetupLogging(ctx context.Context, config *LoggingConfig) (context.Context, error) {
	var logFile io.Writer = os.Stderr

	if config.LogFile != "" {
		f, err := os.OpenFile(config.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return ctx, fmt.Errorf("opening log file %q: %w", config.LogFile, err)
		}
		logFile = f
	}

	logger, err := NewLogger(logFile, config)
	if err != nil {
		return ctx, err
	}

	ctx = logger.WithContext(ctx)

	zerolog.DefaultContextLogger = &logger

	slogLevel := slog.LevelDebug
	switch zerolog.Level(config.LogLevel) {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		slogLevel = slog.LevelDebug
	case zerolog.InfoLevel:
		slogLevel = slog.LevelInfo
	case zerolog.WarnLevel:
		slogLevel = slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		slogLevel = slog.LevelError
	}

	slogger := slog.New(slogzerolog.Option{Level: slogLevel, Logger: &logger}.NewZerologHandler())
	slog.SetDefault(slogger)

	return ctx, nil
}

// NewLogger returns a logger writing to w in the configured format.
func NewLogger(w io.Writer, config *LoggingConfig) (zerolog.Logger, error) {
	var output io.Writer

	switch config.LogFormat {
	case "json":
		output = w
	case "text", "":
		output = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.RFC3339,
			PartsOrder: []string{
				zerolog.LevelFieldName,
				zerolog.TimestampFieldName,
				zerolog.MessageFieldName,
			},
			FormatFieldName:  func(i interface{}) string { return fmt.Sprintf("%s:", i) },
			FormatFieldValue: func(i interface{}) string { return fmt.Sprintf("%s", i) },
		}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format specified: %q", config.LogFormat)
	}

	return zerolog.New(output).Level(zerolog.Level(config.LogLevel)).With().Timestamp().Logger(), nil
}
