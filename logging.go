// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel is the inverse of String and is case-insensitive.
func ParseLogLevel(s string) (LogLevel, error) {
	for l := LogLevelError; l <= LogLevelTrace; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("tribroker: unknown log level %q", s)
}

// slogLevel maps the level onto slog; trace sits below debug.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}

// NewLogger creates a console logger on stderr with the specified level
func NewLogger(level LogLevel) *slog.Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a console logger with custom writer and level
func NewLoggerWithWriter(w io.Writer, level LogLevel) *slog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp}
	zl := zerolog.New(output).With().Timestamp().Logger()
	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: level.slogLevel()})).
		With(slog.String("logger", "tribroker"))
}

// Default loggers for different levels
var (
	// DevNullLogger discards all output
	DevNullLogger = NewLoggerWithWriter(io.Discard, LogLevelError)

	DefaultLogger = NewLogger(LogLevelInfo)
)

func errAttr(err error) slog.Attr {
	return slog.String("error", err.Error())
}

func queuesAttr(s QueueSet) slog.Attr {
	return slog.Any("queues", s.Names())
}
