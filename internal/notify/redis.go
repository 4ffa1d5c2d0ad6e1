package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

// RedisNotifier appends events to a Redis Stream so out-of-process consumers
// (bots, dashboards) can follow trade lifecycles.
type RedisNotifier struct {
	log    *zap.Logger
	rdb    *redis.Client
	stream string
}

type RedisOptions struct {
	Addr     string
	DB       int
	Username string
	Password string
	Stream   string
}

func NewRedisNotifier(log *zap.Logger, opts RedisOptions) *RedisNotifier {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Username: opts.Username,
		Password: opts.Password,
	})
	stream := opts.Stream
	if stream == "" {
		stream = "trade:events"
	}
	return &RedisNotifier{log: log, rdb: rdb, stream: stream}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev trading.Event) {
	values := map[string]interface{}{
		"type":  string(ev.Type),
		"token": ev.Token.Hex(),
		"side":  string(ev.Side),
		"ts_ms": ev.Ts.UnixMilli(),
	}
	if ev.Route != nil {
		values["venue"] = ev.Route.Venue
		values["kind"] = string(ev.Route.Kind)
		values["amount_in"] = ev.Route.AmountIn.String()
		values["amount_out"] = ev.Route.AmountOut.String()
	}
	if ev.Result != nil {
		values["success"] = ev.Result.Success
		values["tx_hash"] = ev.Result.TxHash
		if ev.Result.Error != nil {
			values["error"] = string(ev.Result.Error.Code)
		}
	}
	if ev.Threat != nil {
		values["threat"] = string(ev.Threat.Type)
		values["severity"] = string(ev.Threat.Severity)
	}
	if ev.Detail != "" {
		values["detail"] = ev.Detail
	}
	if err := n.rdb.XAdd(ctx, &redis.XAddArgs{Stream: n.stream, Values: values}).Err(); err != nil {
		n.log.Warn("event publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func (n *RedisNotifier) Close() error { return n.rdb.Close() }
