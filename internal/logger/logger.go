// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is the package-level structured logger every mgridfs
// component writes through: a log/slog logger with the severities
// TRACE/DEBUG/INFO/WARN/ERROR/FATAL/NONE layered on top of slog's five
// built-in levels, text or json output, and optional rotation to a log
// file via gopkg.in/natefinch/lumberjack.v2.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aksaharan/mgridfs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom slog levels. slog reserves -4/0/4/8 for Debug/Info/Warn/Error; TRACE
// sits below Debug and FATAL/NONE sit above Error, mirroring cfg.LogSeverity's
// ranking.
const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug
	LevelWarn  slog.Level = slog.LevelWarn
	LevelInfo  slog.Level = slog.LevelInfo
	LevelError slog.Level = slog.LevelError
	LevelFatal slog.Level = 12
	LevelOff   slog.Level = 16
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

type loggerFactory struct {
	asyncLogger *AsyncLogger
	format      string
	level       cfg.LogSeverity
}

var (
	defaultLoggerFactory = &loggerFactory{
		format: "text",
		level:  cfg.InfoLogSeverity,
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, toLevelVar(cfg.InfoLogSeverity), ""))
)

func toLevelVar(severity cfg.LogSeverity) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(severity, v)
	return v
}

func setLoggingLevel(severity cfg.LogSeverity, levelVar *slog.LevelVar) {
	switch severity {
	case cfg.TraceLogSeverity:
		levelVar.Set(LevelTrace)
	case cfg.DebugLogSeverity:
		levelVar.Set(LevelDebug)
	case cfg.InfoLogSeverity:
		levelVar.Set(LevelInfo)
	case cfg.WarnLogSeverity:
		levelVar.Set(LevelWarn)
	case cfg.ErrorLogSeverity:
		levelVar.Set(LevelError)
	case cfg.FatalLogSeverity:
		levelVar.Set(LevelFatal)
	default:
		levelVar.Set(LevelOff)
	}
}

// replaceLevelName renders our custom TRACE/FATAL levels with their names
// instead of slog's default "DEBUG-4"/"ERROR+4".
func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		if name, ok := levelNames[level]; ok {
			a.Value = slog.StringValue(name)
		}
	}
	return a
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = replaceLevelName(groups, a)
			if a.Key == slog.LevelKey {
				a.Key = "severity"
			}
			if a.Key == slog.MessageKey {
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000"))
			}
			return a
		},
	}

	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Init wires the package-level logger per cfg.LoggingConfig: stderr when
// File is empty, else a lumberjack-rotated file reached through an
// AsyncLogger so a slow disk never blocks a FUSE upcall.
func Init(c cfg.LoggingConfig, format string) error {
	defaultLoggerFactory.level = c.Severity
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if c.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    512,
			MaxBackups: 10,
			Compress:   true,
		}
		defaultLoggerFactory.asyncLogger = NewAsyncLogger(lj, 1024)
		w = defaultLoggerFactory.asyncLogger
	}

	levelVar := toLevelVar(c.Severity)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, levelVar, ""))
	return nil
}

// SetLogFormat switches the active handler's output format without
// disturbing its destination or level.
func SetLogFormat(format string) {
	if format != "text" && format != "json" {
		format = "json"
	}
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.asyncLogger != nil {
		w = defaultLoggerFactory.asyncLogger
	}
	levelVar := toLevelVar(defaultLoggerFactory.level)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, levelVar, ""))
}

// SlogLogger returns the package's current *slog.Logger, for components
// (internal/session, internal/localfs) that take a logger explicitly rather
// than calling the Tracef/Debugf/... helpers directly.
func SlogLogger() *slog.Logger {
	return defaultLogger
}

// Close releases the background file writer, if one was started by Init.
func Close() error {
	if defaultLoggerFactory.asyncLogger != nil {
		return defaultLoggerFactory.asyncLogger.Close()
	}
	return nil
}

func logAt(level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { logAt(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logAt(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logAt(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logAt(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logAt(LevelError, format, v...) }

// Fatalf logs at FATAL and terminates the process. Only cmd/ should call
// this; every other package returns an error instead.
func Fatalf(format string, v ...interface{}) {
	logAt(LevelFatal, format, v...)
	_ = Close()
	os.Exit(1)
}
