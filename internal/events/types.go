package events

import "time"

// Event enumerates the pub/sub topics inside the engine.
type Event string

const (
	EventLog            Event = "log"
	EventCandleClose    Event = "candle_close"
	EventSignal         Event = "signal"
	EventPositionChange Event = "position_change"
	EventTradeClosed    Event = "trade_closed"
	EventEngineState    Event = "engine_state"
	EventAnomaly        Event = "anomaly"
)

// LogLine is the payload for EventLog.
type LogLine struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}
