package middleware

import (
	"github.com/m3rciful/tiffinbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// UpdateMetricsMiddleware counts every update by kind before routing.
func UpdateMetricsMiddleware(reg *metrics.Registry) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			reg.Update(UpdateKind(c.Update()))
			return next(c)
		}
	}
}
