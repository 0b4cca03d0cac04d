package notify

import (
	"context"
	"log/slog"

	"github.com/dynastyq/funding-signal-pipeline/internal/domain"
)

// Fan delivers a signal to a required primary sink and zero or more
// optional secondary sinks. A secondary sink failure is logged and never
// fails the dispatch; only the primary sink's error is returned, since the
// Dispatch Governor's cooldown/rate-limit record hinges on it.
type Fan struct {
	primary   domain.NotifySink
	secondary []domain.NotifySink
	logger    *slog.Logger
}

func NewFan(primary domain.NotifySink, logger *slog.Logger, secondary ...domain.NotifySink) *Fan {
	return &Fan{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "notify_fan"),
	}
}

// Deliver implements domain.NotifySink.
func (f *Fan) Deliver(ctx context.Context, signal domain.Signal) error {
	err := f.primary.Deliver(ctx, signal)

	for _, sink := range f.secondary {
		if sErr := sink.Deliver(ctx, signal); sErr != nil {
			f.logger.Warn("secondary sink delivery failed", "symbol", signal.Symbol, "err", sErr)
		}
	}

	return err
}
