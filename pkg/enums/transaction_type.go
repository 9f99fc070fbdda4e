package enums

import "fmt"

// TransactionType classifies what a ledger entry represents.
type TransactionType string

const (
	TransactionTypeTopup               TransactionType = "topup"
	TransactionTypeSubscriptionPayment TransactionType = "subscription_payment"
	TransactionTypeTransfer            TransactionType = "transfer"
	TransactionTypeRefund              TransactionType = "refund"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeTopup,
	TransactionTypeSubscriptionPayment,
	TransactionTypeTransfer,
	TransactionTypeRefund,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
