// Package ccpmlog provides the one logger construction point for the
// whole core, threaded through Context rather than reached for as a
// package-level global. Grounded on the teacher's Ctx.Verbose/err/out
// fields (context.go) generalized to structured, leveled logging.
package ccpmlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing to out (stderr if nil), at Info
// level normally and Debug level when verbose is true.
func New(out io.Writer, verbose bool) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.Out = out
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if verbose {
		l.Level = logrus.DebugLevel
	} else {
		l.Level = logrus.InfoLevel
	}
	return l
}

// Component returns a logger entry tagged with the owning component's
// name, so log lines from the cache, resolver, executor and warmup
// engine are distinguishable without each one formatting its own
// prefix.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
