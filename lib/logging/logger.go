// Package logging provides logging utilities for the application
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// --------------------------------------------------------------------------
// Log Levels
// --------------------------------------------------------------------------

type LogLevel int

const (
	CRITICAL LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// ParseLogLevel converts a level name (e.g. "info", "DEBUG") to a LogLevel.
// Unknown names default to INFO.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "CRITICAL":
		return CRITICAL
	case "ERROR":
		return ERROR
	case "WARN", "WARNING":
		return WARNING
	case "DEBUG":
		return DEBUG
	default:
		return INFO
	}
}

// --------------------------------------------------------------------------
// Custom Logger
// --------------------------------------------------------------------------

// Logger is a leveled logger with custom formatting. One instance is
// created per package via CreateLogger.
type Logger struct {
	name   string
	level  LogLevel
	logger *log.Logger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level >= DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level >= INFO {
		l.log("INFO", format, args...)
	}
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	if l.level >= WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level >= ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *Logger) Panicf(format string, args ...interface{}) {
	if l.level >= CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *Logger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger creates a named logger that writes to stderr with date and
// time prefixes. The initial level is INFO.
func CreateLogger(pkgName string) *Logger {
	stdLogger := log.New(os.Stderr, "", log.Ldate|log.Ltime)

	return &Logger{
		name:   pkgName,
		level:  INFO,
		logger: stdLogger,
	}
}
