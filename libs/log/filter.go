package log

import "fmt"

type level byte

const (
	levelDebug level = 1 << iota
	levelInfo
	levelError
)

type filter struct {
	next    Logger
	allowed level
}

// NewFilter wraps next and only lets through messages at or above lvl.
// Accepted levels are "debug", "info", "error" and "none".
func NewFilter(next Logger, lvl string) (Logger, error) {
	var allowed level
	switch lvl {
	case "debug":
		allowed = levelDebug | levelInfo | levelError
	case "info":
		allowed = levelInfo | levelError
	case "error":
		allowed = levelError
	case "none":
		allowed = 0
	default:
		return nil, fmt.Errorf("expected either \"info\", \"debug\", \"error\" or \"none\" level, given %s", lvl)
	}
	return &filter{next: next, allowed: allowed}, nil
}

func (l *filter) Info(msg string, keyvals ...interface{}) {
	if l.allowed&levelInfo == 0 {
		return
	}
	l.next.Info(msg, keyvals...)
}

func (l *filter) Debug(msg string, keyvals ...interface{}) {
	if l.allowed&levelDebug == 0 {
		return
	}
	l.next.Debug(msg, keyvals...)
}

func (l *filter) Error(msg string, keyvals ...interface{}) {
	if l.allowed&levelError == 0 {
		return
	}
	l.next.Error(msg, keyvals...)
}

func (l *filter) With(keyvals ...interface{}) Logger {
	return &filter{next: l.next.With(keyvals...), allowed: l.allowed}
}
