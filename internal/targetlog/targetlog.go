// Package targetlog wraps github.com/opencoff/go-logger with
// target-based filtering on top of its priority-only filtering: a log
// call carries both a syslog-style priority and a named target, and
// is dropped before it reaches go-logger if that target has been
// disallowed on the command line (the --loginfo/--setloginfo
// mechanism).
package targetlog

import (
	"fmt"
	"io"
	"sort"

	logger "github.com/opencoff/go-logger"
)

// Target names, matching the taxonomy in the error-handling design.
const (
	TargetUserInteraction = "user_interaction_err"
	TargetFileFormat      = "file_format_err"
	TargetConfig          = "config_err"
	TargetFatalAction     = "fatal_action_failure"
	TargetActionSuccess   = "action_success"
	TargetFileDiscovery   = "file_discovery_err"
	TargetFileError       = "file_error"
	TargetFileSet         = "file_set_err"
)

// AllTargets lists every recognised target, for CLI validation.
var AllTargets = []string{
	TargetUserInteraction,
	TargetFileFormat,
	TargetConfig,
	TargetFatalAction,
	TargetActionSuccess,
	TargetFileDiscovery,
	TargetFileError,
	TargetFileSet,
}

// Logger filters by target before delegating to a go-logger.Logger.
type Logger struct {
	back       logger.Logger
	disallowed map[string]bool
}

// New builds a target-filtering logger writing to w at the given
// go-logger priority. disallowed lists targets that should be
// suppressed regardless of priority.
func New(w io.Writer, prio logger.Priority, name string, disallowed []string) (*Logger, error) {
	back, err := logger.New(w, prio, name, logger.Ldate|logger.Ltime|logger.Lmicroseconds)
	if err != nil {
		return nil, fmt.Errorf("targetlog: %w", err)
	}

	dis := make(map[string]bool, len(disallowed))
	for _, t := range disallowed {
		dis[t] = true
	}

	return &Logger{back: back, disallowed: dis}, nil
}

func (l *Logger) allowed(target string) bool {
	return !l.disallowed[target]
}

// Trace logs at debug priority under target, if target is allowed.
func (l *Logger) Trace(target, format string, args ...interface{}) {
	if l.allowed(target) {
		l.back.Debug(prefixed(target, format), args...)
	}
}

// Info logs at info priority under target, if target is allowed.
func (l *Logger) Info(target, format string, args ...interface{}) {
	if l.allowed(target) {
		l.back.Info(prefixed(target, format), args...)
	}
}

// Warn logs at warning priority under target, if target is allowed.
func (l *Logger) Warn(target, format string, args ...interface{}) {
	if l.allowed(target) {
		l.back.Warn(prefixed(target, format), args...)
	}
}

// Error logs at error priority under target, if target is allowed.
func (l *Logger) Error(target, format string, args ...interface{}) {
	if l.allowed(target) {
		l.back.Error(prefixed(target, format), args...)
	}
}

// Close closes the underlying go-logger.
func (l *Logger) Close() error {
	return l.back.Close()
}

func prefixed(target, format string) string {
	return fmt.Sprintf("(%s) %s", target, format)
}

// ValidTarget reports whether name is one of AllTargets.
func ValidTarget(name string) bool {
	i := sort.SearchStrings(sortedTargets, name)
	return i < len(sortedTargets) && sortedTargets[i] == name
}

var sortedTargets = func() []string {
	t := append([]string(nil), AllTargets...)
	sort.Strings(t)
	return t
}()
