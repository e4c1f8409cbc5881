package log

import (
	stdlog "log"
	"strings"
)

// RedirectStdLog routes standard-library log output (used by Pebble and
// other dependencies) through the given logger at info severity.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogWriter{logger: logger})
}

type stdLogWriter struct {
	logger Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.logger.Info(msg, F("source", "stdlog"))
	}
	return len(p), nil
}
