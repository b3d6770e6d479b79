package domain

import "fmt"

// BillCycles is the fixed set of bill cycle codes a run can target.
var BillCycles = []string{"90", "05", "02", "03"}

// ValidateBillCycle rejects codes outside BillCycles.
func ValidateBillCycle(code string) error {
	for _, c := range BillCycles {
		if c == code {
			return nil
		}
	}
	return fmt.Errorf("%w: %q, valid values are 90, 05, 02, or 03", ErrInvalidBillCycle, code)
}
