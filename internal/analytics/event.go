package analytics

import (
	"go.uber.org/zap"

	"liquidityDesk/internal/amount"
)

// Category groups liquidity events.
const CategoryLiquidity = "Liquidity"

// Actions emitted after a successful submission.
const (
	ActionAdd    = "Add"
	ActionRemove = "Remove"
)

// Event is a fire-and-forget notification.
type Event struct {
	Category string
	Action   string
	Label    string
}

// LiquidityEvent labels an event with the pair's symbols, e.g. "TKA/TKB".
func LiquidityEvent(action string, a, b amount.Currency) Event {
	return Event{Category: CategoryLiquidity, Action: action, Label: amount.Label(a, b)}
}

// Sink receives events. Implementations must not block for long.
type Sink interface {
	Track(event Event)
}

// LogSink writes events to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Track(event Event) {
	if s.Logger == nil {
		return
	}
	s.Logger.Info("event",
		zap.String("category", event.Category),
		zap.String("action", event.Action),
		zap.String("label", event.Label),
	)
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Track(event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Track(event)
		}
	}
}
