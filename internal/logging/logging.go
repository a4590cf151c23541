// Package logging builds the logrus logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/messages"
)

// Environment overrides applied on top of the configured values.
const (
	EnvLogLevel  = "DEXTCTL_LOG_LEVEL"
	EnvLogFormat = "DEXTCTL_LOG_FORMAT"
)

// Component field values.
const (
	ComponentLocator      = "locator"
	ComponentActivation   = "activation"
	ComponentService      = "service"
	ComponentVerifier     = "verifier"
	ComponentOrchestrator = "orchestrator"
)

// Options configures New.
type Options struct {
	Level     string
	Format    string
	Output    io.Writer
	LookupEnv func(key string) (string, bool)
}

// New returns a logger configured from opts with env overrides applied.
func New(opts Options) (*logrus.Logger, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	levelText := opts.Level
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		levelText = v
	}
	format := opts.Format
	if v, ok := lookup(EnvLogFormat); ok && strings.TrimSpace(v) != "" {
		format = v
	}

	level, err := parseLevel(levelText)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(level)
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	logger.SetOutput(output)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	default:
		return nil, fmt.Errorf(messages.LogInvalidFormatFmt, format)
	}
	return logger, nil
}

func parseLevel(raw string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return logrus.WarnLevel, nil
	case "off", "none", "disabled":
		return logrus.PanicLevel, nil
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return logrus.WarnLevel, fmt.Errorf(messages.LogInvalidLevelFmt, raw, err)
	}
	return level, nil
}

// Discard returns a logger that drops everything; components fall back to it when none is given.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// Component tags l with the component name, substituting Discard for a nil logger.
func Component(l logrus.FieldLogger, name string) logrus.FieldLogger {
	if l == nil {
		l = Discard()
	}
	return l.WithField("component", name)
}
