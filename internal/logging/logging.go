// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// New returns a slog logger writing to w at the given level ("debug", "info",
// "warn", "error") in the given format ("text" or "json").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, oops.Code("LOG_FORMAT_INVALID").Errorf("unknown log format %q", format)
	}
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, oops.Code("LOG_LEVEL_INVALID").Wrap(err)
	}
	return lvl, nil
}
