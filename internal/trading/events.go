package trading

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventTradeInitiated  EventType = "trade:initiated"
	EventTradeRouted     EventType = "trade:routed"
	EventTradeSubmitted  EventType = "trade:submitted"
	EventTradeConfirmed  EventType = "trade:confirmed"
	EventTradeFailed     EventType = "trade:failed"
	EventMEVDetected     EventType = "mev:detected"
	EventSlippageWarning EventType = "slippage:warning"
)

// Event is a trade lifecycle notification. mev:detected and slippage:warning
// are strictly advisory and never alter control flow.
type Event struct {
	Type   EventType
	Token  common.Address
	Side   Side
	Ts     time.Time
	Route  *Route       `json:",omitempty"`
	Result *TradeResult `json:",omitempty"`
	Threat *MEVThreat   `json:",omitempty"`
	Detail string       `json:",omitempty"`
}
