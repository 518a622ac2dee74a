package enums

import "fmt"

// LoanStatus tracks the lifecycle of a single lending transaction.
type LoanStatus string

const (
	LoanStatusReserved   LoanStatus = "reserved"
	LoanStatusCheckedOut LoanStatus = "checked_out"
	LoanStatusOverdue    LoanStatus = "overdue"
	LoanStatusReturned   LoanStatus = "returned"
	LoanStatusLost       LoanStatus = "lost"
	LoanStatusCancelled  LoanStatus = "cancelled"
)

var validLoanStatuses = []LoanStatus{
	LoanStatusReserved,
	LoanStatusCheckedOut,
	LoanStatusOverdue,
	LoanStatusReturned,
	LoanStatusLost,
	LoanStatusCancelled,
}

// String implements fmt.Stringer.
func (l LoanStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LoanStatus.
func (l LoanStatus) IsValid() bool {
	for _, candidate := range validLoanStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (l LoanStatus) IsTerminal() bool {
	return l == LoanStatusReturned || l == LoanStatusLost || l == LoanStatusCancelled
}

// ParseLoanStatus converts raw input into a LoanStatus.
func ParseLoanStatus(value string) (LoanStatus, error) {
	for _, candidate := range validLoanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loan status %q", value)
}
