// Package logging wires zerolog into the request context the way the
// rest of the compensation engine expects to find it.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"

	"github.com/brave-intl/compensation-engine/internal/appctx"
)

var droppedLogTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dropped_log_events_total",
		Help: "A counter for the number of dropped log messages",
	},
)

func init() {
	prometheus.MustRegister(droppedLogTotal)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NopCloser wraps an io.Writer so it satisfies io.WriteCloser.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

// SetupLogger attaches a zerolog.Logger to ctx, honoring an override
// writer (tests) and falling back to a buffered diode writer outside
// the local environment so a slow sink never blocks a request.
func SetupLogger(ctx context.Context) (context.Context, *zerolog.Logger) {
	writer, overridden := ctx.Value(appctx.LogWriterCTXKey).(io.Writer)

	env, err := appctx.GetStringFromContext(ctx, appctx.EnvironmentCTXKey)
	if err != nil {
		env = "local"
	}

	level := zerolog.InfoLevel
	if lvl, ok := ctx.Value(appctx.LogLevelCTXKey).(zerolog.Level); ok {
		level = lvl
	}

	var out io.WriteCloser
	switch {
	case overridden:
		out = NopCloser(writer)
	case env != "local":
		out = diode.NewWriter(os.Stdout, 1000, 20*time.Millisecond, func(missed int) {
			droppedLogTotal.Add(float64(missed))
		})
	default:
		out = NopCloser(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l.WithContext(ctx), &l
}

// Logger returns a module-tagged logger, creating one from ctx if needed.
func Logger(ctx context.Context, module string) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		_, l = SetupLogger(ctx)
	}
	sl := l.With().Str("module", module).Logger()
	return &sl
}
