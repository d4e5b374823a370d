package service

import (
	"time"

	"github.com/morinoya/order-api/internal/enum"
)

const (
	urgencyWarningAge  = 2 * time.Minute
	urgencyCriticalAge = 3 * time.Minute
)

// UrgencyFor computes the dashboard urgency tier for a pending order as a
// pure function of its age. The dashboard renders warning orders highlighted
// and critical orders with an alert until they leave pending.
func UrgencyFor(createdAt, now time.Time) string {
	age := now.Sub(createdAt)
	switch {
	case age >= urgencyCriticalAge:
		return enum.UrgencyCritical
	case age >= urgencyWarningAge:
		return enum.UrgencyWarning
	default:
		return enum.UrgencyNormal
	}
}
