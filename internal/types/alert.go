package types

import "time"

// AlertLevel classifies an alert for the delivery collaborator.
type AlertLevel string

const (
	AlertLevelInfo    AlertLevel = "INFO"
	AlertLevelWarning AlertLevel = "WARNING"
	AlertLevelError   AlertLevel = "ERROR"
)

// Alert is an operator-facing notification emitted by the live engine.
// Delivery (Telegram, email, chat) is owned by the consumer of the
// OnAlert callback.
type Alert struct {
	Time    time.Time
	Level   AlertLevel
	Message string
}
