package enums

import "fmt"

// TransactionSource names the origin that produced a ledger entry.
type TransactionSource string

const (
	TransactionSourceProvider   TransactionSource = "provider"
	TransactionSourceBudgetCard TransactionSource = "budget_card"
	TransactionSourceInternal   TransactionSource = "internal"
)

var validTransactionSources = []TransactionSource{
	TransactionSourceProvider,
	TransactionSourceBudgetCard,
	TransactionSourceInternal,
}

// String implements fmt.Stringer.
func (s TransactionSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionSource.
func (s TransactionSource) IsValid() bool {
	for _, candidate := range validTransactionSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionSource converts raw input into a TransactionSource.
func ParseTransactionSource(value string) (TransactionSource, error) {
	for _, candidate := range validTransactionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction source %q", value)
}
