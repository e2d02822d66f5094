package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

var (
	once   sync.Once
	logger *zerolog.Logger
)

// Get returns the singleton logger instance, initializing it on first call.
func Get() *zerolog.Logger {
	once.Do(func() {
		logger = newLogger()
	})
	return logger
}

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// newLogger creates a logger based on the ENV environment variable
func newLogger() *zerolog.Logger {
	env := os.Getenv("ENV")

	// Set log level based on LOG_LEVEL env var, default to info
	logLevel := zerolog.InfoLevel
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if parsedLevel, err := zerolog.ParseLevel(strings.ToLower(levelStr)); err == nil {
			logLevel = parsedLevel
		} else {
			fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL \"%s\"; defaulting to 'info'\n", levelStr)
		}
	}

	zerolog.SetGlobalLevel(logLevel)

	if env == "development" || env == "dev" || env == "" {
		return newDevelopment()
	}
	return newProduction()
}

// newDevelopment creates a development logger with console output and colors
func newDevelopment() *zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok {
				return strings.ToUpper(fmt.Sprintf("%s", i))[0:3]
			}
			switch ll {
			case "trace":
				return colorize("TRC", colorMagenta)
			case "debug":
				return colorize("DBG", colorYellow)
			case "info":
				return colorize("INF", colorGreen)
			case "warn", "error", "fatal", "panic":
				return colorize(strings.ToUpper(ll)[0:3], colorRed)
			default:
				return colorize(strings.ToUpper(ll)[0:3], colorBold)
			}
		},
	}

	zl := zerolog.New(output).With().Timestamp().Logger()
	return &zl
}

// newProduction creates a production logger with JSON output and UNIX timestamps
func newProduction() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &zl
}
