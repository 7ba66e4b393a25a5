// Package mock provides in-memory test doubles for the core interfaces.
package mock

import "paper_trader/internal/core"

// Logger discards everything. Tests that assert on log output do not exist;
// the logger is plumbing only.
type Logger struct{}

// NewLogger returns a no-op logger.
func NewLogger() *Logger { return &Logger{} }

func (l *Logger) Debug(msg string, fields ...interface{}) {}
func (l *Logger) Info(msg string, fields ...interface{})  {}
func (l *Logger) Warn(msg string, fields ...interface{})  {}
func (l *Logger) Error(msg string, fields ...interface{}) {}
func (l *Logger) Fatal(msg string, fields ...interface{}) {}

func (l *Logger) WithField(key string, value interface{}) core.Logger  { return l }
func (l *Logger) WithFields(fields map[string]interface{}) core.Logger { return l }
