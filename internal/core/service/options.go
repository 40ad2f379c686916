package service

import (
	"log/slog"
	"time"

	"github.com/rl1809/item-ledger/internal/telemetry"
)

// Options carries the ambient dependencies shared by the ledger components.
// Zero values fall back to the default logger, no-op metrics and the wall clock.
type Options struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Clock   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = telemetry.NoopMetrics()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
