package parking

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Policy holds the static rate and limit tables. It is never mutated after
// construction, so its methods are safe for concurrent use without locking.
type Policy struct {
	DailyRates       map[VehicleClass]decimal.Decimal
	MonthlyRates     map[VehicleClass]decimal.Decimal
	TimeLimits       map[CustomerClass]time.Duration
	ReEntryFee       decimal.Decimal
	ReEntryWindow    time.Duration
	PenaltyPerHour   decimal.Decimal
	WarningThreshold int
	VIPPassDuration  time.Duration
	CurrencySymbol   string
}

func DefaultPolicy() Policy {
	return Policy{
		DailyRates: map[VehicleClass]decimal.Decimal{
			Small:  decimal.NewFromInt(100),
			Medium: decimal.NewFromInt(150),
			Large:  decimal.NewFromInt(200),
		},
		MonthlyRates: map[VehicleClass]decimal.Decimal{
			Small:  decimal.NewFromInt(2000),
			Medium: decimal.NewFromInt(3000),
			Large:  decimal.NewFromInt(4000),
		},
		TimeLimits: map[CustomerClass]time.Duration{
			RegularCustomer: 24 * time.Hour,
			VIPCustomer:     48 * time.Hour,
		},
		ReEntryFee:       decimal.NewFromInt(50),
		ReEntryWindow:    24 * time.Hour,
		PenaltyPerHour:   decimal.NewFromInt(20),
		WarningThreshold: 3,
		VIPPassDuration:  30 * 24 * time.Hour,
		CurrencySymbol:   "₹",
	}
}

// Validate checks that every enum variant has a table entry.
func (p Policy) Validate() error {
	for _, c := range VehicleClasses {
		if _, err := p.DailyRate(c); err != nil {
			return err
		}
		if _, err := p.MonthlyRate(c); err != nil {
			return err
		}
	}
	for _, c := range CustomerClasses {
		if _, err := p.TimeLimit(c); err != nil {
			return err
		}
	}
	if p.WarningThreshold <= 0 {
		return errors.Newf("warning threshold must be positive, got %d", p.WarningThreshold)
	}
	if p.VIPPassDuration <= 0 {
		return errors.Newf("vip pass duration must be positive, got %s", p.VIPPassDuration)
	}
	if p.ReEntryFee.IsNegative() || p.PenaltyPerHour.IsNegative() {
		return errors.New("fees must be non-negative")
	}
	return nil
}

func (p Policy) TimeLimit(c CustomerClass) (time.Duration, error) {
	limit, ok := p.TimeLimits[c]
	if !ok {
		return 0, internalError(ErrUnknownClass, "no time limit for customer class %s", c)
	}
	return limit, nil
}

func (p Policy) DailyRate(c VehicleClass) (decimal.Decimal, error) {
	rate, ok := p.DailyRates[c]
	if !ok {
		return decimal.Zero, internalError(ErrUnknownClass, "no daily rate for vehicle class %s", c)
	}
	return rate, nil
}

func (p Policy) MonthlyRate(c VehicleClass) (decimal.Decimal, error) {
	rate, ok := p.MonthlyRates[c]
	if !ok {
		return decimal.Zero, internalError(ErrUnknownClass, "no monthly rate for vehicle class %s", c)
	}
	return rate, nil
}

// Suspended reports whether a warning count has reached the suspension threshold.
func (p Policy) Suspended(warnings int) bool {
	return warnings >= p.WarningThreshold
}

// EffectiveLimit is the time limit for a stay. A VIP covered by an active
// pass at t has no limit and ok is false.
func (p Policy) EffectiveLimit(v *Vehicle, t time.Time) (limit time.Duration, ok bool, err error) {
	if v.HasActivePass(t) {
		return 0, false, nil
	}
	limit, err = p.TimeLimit(v.CustomerClass)
	if err != nil {
		return 0, false, err
	}
	return limit, true, nil
}

type FeeBreakdown struct {
	BaseFee      decimal.Decimal
	ReEntryFee   decimal.Decimal
	Penalty      decimal.Decimal
	TotalFee     decimal.Decimal
	Overstay     bool
	PenaltyHours int64
	BilledDays   int64
	Duration     time.Duration
	PassApplied  bool
}

// ComputeExitFee prices a stay from allocatedAt to exitTime.
func (p Policy) ComputeExitFee(v *Vehicle, allocatedAt, exitTime time.Time) (FeeBreakdown, error) {
	elapsed := exitTime.Sub(allocatedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	fee := FeeBreakdown{
		BaseFee:    decimal.Zero,
		ReEntryFee: decimal.Zero,
		Penalty:    decimal.Zero,
		Duration:   elapsed,
	}

	if v.HasActivePass(exitTime) {
		fee.PassApplied = true
	} else {
		rate, err := p.DailyRate(v.Class)
		if err != nil {
			return FeeBreakdown{}, err
		}
		fee.BilledDays = ceilUnits(elapsed, 24*time.Hour)
		if fee.BilledDays < 1 {
			fee.BilledDays = 1
		}
		fee.BaseFee = rate.Mul(decimal.NewFromInt(fee.BilledDays))
	}

	if v.ReEntryCount > 0 {
		fee.ReEntryFee = p.ReEntryFee
	}

	limit, limited, err := p.EffectiveLimit(v, exitTime)
	if err != nil {
		return FeeBreakdown{}, err
	}
	if limited && elapsed > limit {
		fee.Overstay = true
		fee.PenaltyHours = ceilUnits(elapsed-limit, time.Hour)
		fee.Penalty = p.PenaltyPerHour.Mul(decimal.NewFromInt(fee.PenaltyHours))
	}

	fee.TotalFee = fee.BaseFee.Add(fee.ReEntryFee).Add(fee.Penalty).Round(2)
	fee.BaseFee = fee.BaseFee.Round(2)
	fee.Penalty = fee.Penalty.Round(2)
	return fee, nil
}

func ceilUnits(d, unit time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + unit - 1) / unit)
}

// RulesText lists the active policy in the order receipts print it.
func (p Policy) RulesText() []string {
	rules := make([]string, 0, 8)
	for _, c := range VehicleClasses {
		rules = append(rules, fmt.Sprintf("%s vehicles: daily rate %s%s, VIP monthly pass %s%s",
			c, p.CurrencySymbol, p.DailyRates[c].StringFixed(2), p.CurrencySymbol, p.MonthlyRates[c].StringFixed(2)))
	}
	rules = append(rules,
		fmt.Sprintf("Regular customers may park up to %s per visit", formatHours(p.TimeLimits[RegularCustomer])),
		fmt.Sprintf("VIP pass holders park without limit for %d days", int(p.VIPPassDuration.Hours()/24)),
		fmt.Sprintf("Re-entry within %s costs %s%s", formatHours(p.ReEntryWindow), p.CurrencySymbol, p.ReEntryFee.StringFixed(2)),
		fmt.Sprintf("Overstay penalty: %s%s per hour, one warning per overstay", p.CurrencySymbol, p.PenaltyPerHour.StringFixed(2)),
		fmt.Sprintf("Entry is suspended after %d warnings", p.WarningThreshold),
	)
	return rules
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%g hours", d.Hours())
}
