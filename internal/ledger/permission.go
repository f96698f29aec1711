package ledger

import (
	"strings"
)

const (
	// ReasonInsufficientFunds is reported when a withdrawal would break the account's balance rule
	ReasonInsufficientFunds = "insufficient funds"

	// ReasonBeforeMaturity is reported for deposit withdrawals before the end date
	ReasonBeforeMaturity = "before maturity"

	// ReasonUnverifiedLimit is reported when an unverified client exceeds the bank ceiling
	ReasonUnverifiedLimit = "unverified client exceeds withdrawal limit"

	// ReasonBalanceOutOfRange is reported when a balance would leave the int64 range
	ReasonBalanceOutOfRange = "balance out of range"
)

// Permission is the result of a permission check.
// A Permission without reasons is a success; And accumulates the reasons of both sides.
type Permission struct {
	reasons []string
}

// Allow returns a successful permission
func Allow() Permission {
	return Permission{}
}

// Deny returns a failed permission carrying the given reasons
func Deny(reasons ...string) Permission {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != "" {
			out = append(out, r)
		}
	}
	return Permission{reasons: out}
}

// And combines two results, keeping the reasons in call order
func (p Permission) And(other Permission) Permission {
	if len(other.reasons) == 0 {
		return p
	}
	if len(p.reasons) == 0 {
		return other
	}
	reasons := make([]string, 0, len(p.reasons)+len(other.reasons))
	reasons = append(reasons, p.reasons...)
	reasons = append(reasons, other.reasons...)
	return Permission{reasons: reasons}
}

// OK reports whether no reasons were recorded
func (p Permission) OK() bool {
	return len(p.reasons) == 0
}

// Reasons returns a copy of the failure reasons
func (p Permission) Reasons() []string {
	out := make([]string, len(p.reasons))
	copy(out, p.reasons)
	return out
}

func (p Permission) String() string {
	if p.OK() {
		return "Success"
	}
	return "Error: " + strings.Join(p.reasons, "; ")
}

// Err returns nil for a success and a *PermissionError otherwise
func (p Permission) Err() error {
	if p.OK() {
		return nil
	}
	return &PermissionError{Permission: p}
}

// PermissionError carries a failed Permission through an error return
type PermissionError struct {
	Permission Permission
}

func (e *PermissionError) Error() string {
	return "permission denied: " + strings.Join(e.Permission.reasons, "; ")
}
