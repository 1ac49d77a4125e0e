package log

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// New returns a logr.Logger backed by zerolog. Output is JSON on stderr when
// running in Kubernetes and a console writer on stdout otherwise. level is a
// zerolog level name; "debug" enables V(1) and "trace" enables V(2).
func New(level string) (logr.Logger, error) {
	var output io.Writer
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}
	return NewWithWriter(output, level)
}

// NewWithWriter is like New but writes to w.
func NewWithWriter(w io.Writer, level string) (logr.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"

	zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return zerologr.New(&zl), nil
}
