// Package cycle implements billing-cycle date arithmetic for recurring
// subscriptions. Everything here is pure: no clock access, no persistence.
package cycle

import (
	"time"

	"github.com/unipay-app/unipay-backend/pkg/enums"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

// NextDate returns the next billing date exactly one period after from,
// normalized to UTC midnight. Month-based cycles clamp the day-of-month to
// the shorter target month (Jan 31 + 1 month = Feb 28/29; Feb 29 + 1 year =
// Feb 28).
//
// Unknown cycle values fall back to monthly rather than erroring. That
// mirrors the historical behavior wallets were created with; callers wanting
// strict input validation should run enums.ParseBillingCycle first.
func NextDate(cycle enums.BillingCycle, from time.Time) (time.Time, error) {
	if from.IsZero() {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from date is required")
	}

	switch cycle {
	case enums.BillingCycleWeekly:
		return StartOfDay(from).AddDate(0, 0, 7), nil
	case enums.BillingCycleQuarterly:
		return addMonthsClamped(from, 3), nil
	case enums.BillingCycleYearly:
		return addMonthsClamped(from, 12), nil
	case enums.BillingCycleMonthly:
		return addMonthsClamped(from, 1), nil
	default:
		return addMonthsClamped(from, 1), nil
	}
}

// StartOfDay truncates a timestamp to UTC midnight. Scheduled ledger entries
// carry the billing day, not the wall-clock insertion time.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.UTC().Date()
	// Anchor on the first of the month so AddDate cannot spill into the
	// following month (Jan 31 + 1 month would otherwise become Mar 2/3).
	firstOfTarget := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}
