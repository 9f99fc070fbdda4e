package enums

import "fmt"

// BillingCycle is the recurrence period for a subscription.
type BillingCycle string

const (
	BillingCycleWeekly    BillingCycle = "weekly"
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

var validBillingCycles = []BillingCycle{
	BillingCycleWeekly,
	BillingCycleMonthly,
	BillingCycleQuarterly,
	BillingCycleYearly,
}

// String implements fmt.Stringer.
func (c BillingCycle) String() string {
	return string(c)
}

// IsValid reports whether the value is a known BillingCycle.
func (c BillingCycle) IsValid() bool {
	for _, candidate := range validBillingCycles {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseBillingCycle converts raw input into a BillingCycle.
func ParseBillingCycle(value string) (BillingCycle, error) {
	for _, candidate := range validBillingCycles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing cycle %q", value)
}
