// Package logger provides leveled structured logging.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var defaultLogger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init configures the default logger with the specified level and format.
// Unknown levels fall back to info; format is either "json" or "text".
func Init(level string, format string) {
	switch strings.ToLower(level) {
	case "debug":
		defaultLogger.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		defaultLogger.SetLevel(logrus.WarnLevel)
	case "error":
		defaultLogger.SetLevel(logrus.ErrorLevel)
	default:
		defaultLogger.SetLevel(logrus.InfoLevel)
	}

	if strings.ToLower(format) == "text" {
		defaultLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		defaultLogger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// With returns an entry carrying the given fields.
func With(fields map[string]interface{}) *logrus.Entry {
	return defaultLogger.WithFields(logrus.Fields(fields))
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatalf(format, args...)
}
