package core

import (
	"context"
	"time"

	"replacechain/pkg/domain"
)

// LogObserver reports manager events as log lines: advisory outcomes at warn
// level, everything else at info.
type LogObserver struct {
	logger Logger
}

// NewLogObserver returns an observer writing to logger. A nil logger
// discards events.
func NewLogObserver(logger Logger) *LogObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogObserver{logger: logger}
}

var eventMessages = map[domain.EventKind]string{
	domain.EventProductCreated:  "product registered",
	domain.EventUnionApplied:    "replacement applied",
	domain.EventUnionRefused:    "replacement refused: a newer replacement is already recorded",
	domain.EventProductNotFound: "product not found",
	domain.EventStatePersisted:  "state persisted",
	domain.EventStateLoaded:     "state loaded",
}

// Notify implements domain.Observer.
func (o *LogObserver) Notify(_ context.Context, ev domain.Event) {
	msg, ok := eventMessages[ev.Kind]
	if !ok {
		msg = string(ev.Kind)
	}
	args := eventArgs(ev)
	if ev.Kind.Advisory() {
		o.logger.Warn(msg, args...)
		return
	}
	o.logger.Info(msg, args...)
}

func eventArgs(ev domain.Event) []any {
	args := []any{"event", string(ev.Kind)}
	if ev.Product != "" {
		args = append(args, "product", ev.Product)
	}
	if ev.Replacement != nil {
		args = append(args, "old", ev.Replacement.Old, "new", ev.Replacement.New, "date", formatDate(ev.Replacement.Date))
	}
	if ev.Latest != "" {
		args = append(args, "latest", ev.Latest, "latest_date", formatDate(ev.Date))
	}
	switch ev.Kind {
	case domain.EventStatePersisted, domain.EventStateLoaded:
		args = append(args, "products", ev.Products, "driver", string(ev.Driver))
	}
	return args
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.DateOnly)
}
