package middleware

import tele "gopkg.in/telebot.v4"

// Update kinds used for logging, metrics and rate limit exclusions.
const (
	KindMessage = "message"
	KindEdited  = "edited"
	KindOther   = "other"
)

// UpdateKind classifies an update by the field Telegram populated.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.EditedMessage != nil:
		return KindEdited
	case upd.Message != nil:
		return KindMessage
	default:
		return KindOther
	}
}
