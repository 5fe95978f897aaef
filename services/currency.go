package services

import (
	"fmt"
	"math"
	"strconv"
)

// platformFeePercent is the share of every charge the platform retains.
const platformFeePercent = 20

// maxBidDollars caps a single bid. Anything above it is bad upstream data,
// not a real request.
const maxBidDollars = 1_000_000

// BidToMinorUnits converts a decimal-dollar bid like "2.50" into integer
// cents, rounding to the nearest cent. The bid must be a finite positive
// decimal no larger than maxBidDollars; ParseFloat also accepts "NaN",
// "Inf" and overflowing exponents, none of which may reach a charge.
func BidToMinorUnits(bid string) (int64, error) {
	dollars, err := strconv.ParseFloat(bid, 64)
	if err != nil {
		return 0, fmt.Errorf("bid amount %q is not a decimal: %w", bid, err)
	}
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, fmt.Errorf("bid amount %q is not a finite number", bid)
	}
	if dollars <= 0 {
		return 0, fmt.Errorf("bid amount %q is not positive", bid)
	}
	if dollars > maxBidDollars {
		return 0, fmt.Errorf("bid amount %q exceeds the %d dollar limit", bid, maxBidDollars)
	}
	return int64(math.Round(dollars * 100)), nil
}

// PlatformFee computes the platform's cut in minor units. Integer division
// truncates; the fee is taken from the minor-unit amount, never recomputed
// from the decimal bid.
func PlatformFee(amountMinor int64) int64 {
	return amountMinor * platformFeePercent / 100
}
