package queue

import (
	"github.com/go-kit/kit/log"
)

// ErrorReporter receives diagnostic messages about failed inserts.
type ErrorReporter interface {
	ReportError(msg string)
}

// ReporterFunc adapts a function to the ErrorReporter interface.
type ReporterFunc func(msg string)

// ReportError calls f(msg).
func (f ReporterFunc) ReportError(msg string) {
	f(msg)
}

// NewLogReporter returns an ErrorReporter that writes to l at the ERROR level.
func NewLogReporter(l log.Logger) ErrorReporter {
	if l == nil {
		l = log.NewNopLogger()
	}
	return ReporterFunc(func(msg string) {
		_ = l.Log("LEVEL", "ERROR", "MESSAGE", msg)
	})
}

type nopReporter struct{}

func (nopReporter) ReportError(string) {}
