package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// InitLogger installs a text slog handler on stderr (and filepath, if set)
// as the default logger. Source locations are added at debug level.
func InitLogger(filepath string, levelStr string) (*slog.LevelVar, error) {
	err := ValidateLevel(levelStr)
	if err != nil {
		return nil, err
	}

	level := ParseLevel(levelStr)

	var writer io.Writer = os.Stderr

	if filepath != "" {
		f, err := os.OpenFile(filepath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}

		writer = io.MultiWriter(writer, f)
	}

	var leveler slog.LevelVar
	leveler.Set(level)

	slog.SetDefault(slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level:     &leveler,
		AddSource: level == slog.LevelDebug,
	})))

	return &leveler, nil
}

// Err is the single helper used to log errors, always under the key "err".
func Err(err error) slog.Attr {
	return slog.Any("err", err)
}

func ValidateLevel(levelStr string) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(levelStr)) {
		return fmt.Errorf("log level %q is invalid, must be one of %q", levelStr, strings.Join(validLogLevels, ","))
	}

	return nil
}

func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
