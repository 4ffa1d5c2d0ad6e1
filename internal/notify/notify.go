// Package notify fans trade lifecycle events out to registered sinks.
// Delivery is best-effort and never blocks or fails the trade path.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

type Notifier interface {
	Notify(ctx context.Context, ev trading.Event)
}

// Multi fans out to every sink in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev trading.Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) Notify(_ context.Context, ev trading.Event) {
	fields := []zap.Field{
		zap.String("token", ev.Token.Hex()),
		zap.String("side", string(ev.Side)),
		zap.Time("ts", ev.Ts),
	}
	if ev.Route != nil {
		fields = append(fields,
			zap.String("venue", ev.Route.Venue),
			zap.String("kind", string(ev.Route.Kind)),
			zap.Float64("impact_pct", ev.Route.PriceImpactPct))
	}
	if ev.Result != nil {
		fields = append(fields, zap.Bool("success", ev.Result.Success), zap.String("tx", ev.Result.TxHash))
		if ev.Result.Error != nil {
			fields = append(fields, zap.String("error", ev.Result.Error.Error()))
		}
	}
	if ev.Threat != nil {
		fields = append(fields,
			zap.String("threat", string(ev.Threat.Type)),
			zap.String("severity", string(ev.Threat.Severity)))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	n.log.Info(string(ev.Type), fields...)
}

// ChanNotifier exposes events on a channel for embedding callers. Events are
// dropped, not blocked on, when the consumer lags.
type ChanNotifier struct {
	C       chan trading.Event
	Dropped int
}

func NewChanNotifier(buf int) *ChanNotifier {
	return &ChanNotifier{C: make(chan trading.Event, buf)}
}

func (n *ChanNotifier) Notify(_ context.Context, ev trading.Event) {
	select {
	case n.C <- ev:
	default:
		n.Dropped++
	}
}
