// Package logging is a thin wrapper around logrus, mirroring the
// teacher's log package (open-policy-agent-opa/log/log.go): a narrow
// Logger interface plus a package-level default instance, so the
// evaluator never talks to logrus directly.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Fields aliases logrus.Fields.
type Fields = logrus.Fields

// Logger is the interface this repository's components log through.
type Logger interface {
	Debugf(string, ...any)
	Infof(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
	Fatalf(string, ...any)
	WithFields(Fields) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New wraps a fresh logrus logger at the given level ("debug", "info",
// "warn", "error"). An invalid level defaults to "info".
func New(level string) Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(f string, a ...any) { l.entry.Debugf(f, a...) }
func (l *logrusLogger) Infof(f string, a ...any)  { l.entry.Infof(f, a...) }
func (l *logrusLogger) Warnf(f string, a ...any)  { l.entry.Warnf(f, a...) }
func (l *logrusLogger) Errorf(f string, a ...any) { l.entry.Errorf(f, a...) }
func (l *logrusLogger) Fatalf(f string, a ...any) { l.entry.Fatalf(f, a...) }

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}

// Default is the package-level logger used by components that were not
// handed one explicitly (e.g. package-level helpers reached from many
// call sites where threading a logger through every signature would
// add noise without adding clarity).
var Default Logger = New("info")
