package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvLevel  = "LANE_MCP_LOG_LEVEL"
	EnvFormat = "LANE_MCP_LOG_FORMAT"
	EnvFile   = "LANE_MCP_LOG_FILE"
)

// Logger is the process-wide logger. It writes text to stderr at info level
// until Setup replaces its configuration.
var Logger = New(Options{})

type Fields = logrus.Fields

// Options selects the logger's level, format and destinations.
type Options struct {
	// Level is one of debug, info, warn, error. Anything else means info.
	Level string

	// Format is "json" or "text". Anything else means text.
	Format string

	// File, when set, receives a copy of every entry through a rotating
	// writer.
	File string

	// Output replaces stderr as the primary destination. Stdout carries the
	// MCP protocol and must never be used here.
	Output io.Writer
}

// OptionsFromEnv reads the LANE_MCP_LOG_* variables.
func OptionsFromEnv() Options {
	return Options{
		Level:  os.Getenv(EnvLevel),
		Format: os.Getenv(EnvFormat),
		File:   os.Getenv(EnvFile),
	}
}

// New builds a logger from opts.
func New(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(parseLevel(opts.Level))

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		l.SetFormatter(&formatter.Formatter{
			NoColors:        true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
			},
		})
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(l.IsLevelEnabled(logrus.DebugLevel))

	return l
}

// Setup replaces the process-wide logger.
func Setup(opts Options) *logrus.Logger {
	Logger = New(opts)
	return Logger
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithFields creates a new entry with the given fields
func WithFields(fields Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}

// Error logs an error message
func Error(msg string) {
	Logger.Error(msg)
}

// Debug logs a debug message
func Debug(msg string) {
	Logger.Debug(msg)
}

// Warn logs a warning message
func Warn(msg string) {
	Logger.Warn(msg)
}
