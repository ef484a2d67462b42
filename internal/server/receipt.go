package server

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"parking-allocator/internal/parking"
)

const qrTimeLayout = "20060102150405"

type PricingInfo struct {
	DailyRate      string `json:"daily_rate"`
	VIPMonthlyPass string `json:"vip_monthly_pass,omitempty"`
	ReEntryFee     string `json:"re_entry_fee,omitempty"`
	PenaltyPerHour string `json:"penalty_per_hour"`
}

type AllocationReceipt struct {
	TicketID      string      `json:"ticket_id"`
	SlotID        string      `json:"slot_id"`
	Level         int         `json:"level"`
	Section       string      `json:"section"`
	VehicleClass  string      `json:"vehicle_class"`
	CustomerClass string      `json:"customer_class"`
	LicensePlate  string      `json:"license_plate"`
	IsEV          bool        `json:"is_ev"`
	AllocatedAt   time.Time   `json:"allocated_at"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	VIPPassExpiry *time.Time  `json:"vip_pass_expiry,omitempty"`
	TimeLimit     string      `json:"time_limit"`
	ReEntry       bool        `json:"re_entry"`
	Pricing       PricingInfo `json:"pricing"`
	Rules         []string    `json:"rules"`
	QRCode        string      `json:"qr_code"`
}

type ReleaseReceipt struct {
	TicketID      string    `json:"ticket_id"`
	SlotID        string    `json:"slot_id"`
	LicensePlate  string    `json:"license_plate"`
	VehicleClass  string    `json:"vehicle_class"`
	CustomerClass string    `json:"customer_class"`
	AllocatedAt   time.Time `json:"allocated_at"`
	ExitTime      time.Time `json:"exit_time"`
	DurationHours float64   `json:"duration_hours"`
	BilledDays    int64     `json:"billed_days"`
	BaseFee       string    `json:"base_fee"`
	ReEntryFee    string    `json:"re_entry_fee"`
	Penalty       string    `json:"penalty"`
	TotalFee      string    `json:"total_fee"`
	Overstay      bool      `json:"overstay"`
	PenaltyHours  int64     `json:"penalty_hours"`
	Warnings      int       `json:"warnings"`
	WarningIssued bool      `json:"warning_issued"`
	Suspended     bool      `json:"suspended"`
	VIPPass       string    `json:"vip_pass,omitempty"`
	PenaltyInfo   string    `json:"penalty_info,omitempty"`
	WarningInfo   string    `json:"warning_info,omitempty"`
	QRCode        string    `json:"qr_code"`
}

func money(policy parking.Policy, amount decimal.Decimal) string {
	return policy.CurrencySymbol + amount.StringFixed(2)
}

func qrCode(prefix, ticketID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, ticketID, at.Format(qrTimeLayout))
}

// NewAllocationReceipt describes a fresh allocation. slot must be the occupied
// snapshot returned by Enter.
func NewAllocationReceipt(policy parking.Policy, slot parking.Slot, isEV bool) (AllocationReceipt, error) {
	occupancy := slot.Occupancy
	if occupancy == nil {
		return AllocationReceipt{}, errors.Mark(
			errors.AssertionFailedf("slot %s has no occupancy", slot.ID), parking.ErrInternal)
	}
	vehicle := occupancy.Vehicle

	rate, err := policy.DailyRate(vehicle.Class)
	if err != nil {
		return AllocationReceipt{}, err
	}

	receipt := AllocationReceipt{
		TicketID:      vehicle.TicketID,
		SlotID:        slot.ID,
		Level:         slot.Level,
		Section:       slot.Section.String(),
		VehicleClass:  vehicle.Class.String(),
		CustomerClass: vehicle.CustomerClass.String(),
		LicensePlate:  vehicle.LicensePlate,
		IsEV:          isEV,
		AllocatedAt:   occupancy.AllocatedAt,
		VIPPassExpiry: vehicle.VIPPassExpiry,
		ReEntry:       vehicle.ReEntryCount > 0,
		Pricing: PricingInfo{
			DailyRate:      money(policy, rate),
			PenaltyPerHour: money(policy, policy.PenaltyPerHour),
		},
		Rules:  policy.RulesText(),
		QRCode: qrCode("PARK", vehicle.TicketID, occupancy.AllocatedAt),
	}

	deadline, limited, err := occupancy.Deadline(policy, occupancy.AllocatedAt)
	if err != nil {
		return AllocationReceipt{}, err
	}
	if limited {
		receipt.ExpiresAt = &deadline
		receipt.TimeLimit = formatDuration(deadline.Sub(occupancy.AllocatedAt))
	} else {
		receipt.TimeLimit = "No limit while the VIP pass is active"
	}

	if vehicle.IsVIP() {
		monthly, err := policy.MonthlyRate(vehicle.Class)
		if err != nil {
			return AllocationReceipt{}, err
		}
		receipt.Pricing.VIPMonthlyPass = money(policy, monthly)
	}
	if receipt.ReEntry {
		receipt.Pricing.ReEntryFee = money(policy, policy.ReEntryFee)
	}

	return receipt, nil
}

func NewReleaseReceipt(policy parking.Policy, result parking.ExitResult) ReleaseReceipt {
	vehicle := result.Vehicle
	fee := result.Fee

	receipt := ReleaseReceipt{
		TicketID:      vehicle.TicketID,
		SlotID:        result.Slot.ID,
		LicensePlate:  vehicle.LicensePlate,
		VehicleClass:  vehicle.Class.String(),
		CustomerClass: vehicle.CustomerClass.String(),
		AllocatedAt:   result.AllocatedAt,
		ExitTime:      result.ExitTime,
		DurationHours: math.Round(fee.Duration.Hours()*100) / 100,
		BilledDays:    fee.BilledDays,
		BaseFee:       money(policy, fee.BaseFee),
		ReEntryFee:    money(policy, fee.ReEntryFee),
		Penalty:       money(policy, fee.Penalty),
		TotalFee:      money(policy, fee.TotalFee),
		Overstay:      result.Overstay,
		PenaltyHours:  fee.PenaltyHours,
		Warnings:      result.Warnings,
		WarningIssued: result.WarningIssued,
		Suspended:     result.Suspended,
		QRCode:        qrCode("RELEASE", vehicle.TicketID, result.ExitTime),
	}

	if fee.PassApplied && vehicle.VIPPassExpiry != nil {
		receipt.VIPPass = fmt.Sprintf("Covered by VIP pass valid until %s",
			vehicle.VIPPassExpiry.Format(time.RFC3339))
	} else if vehicle.IsVIP() {
		receipt.VIPPass = "VIP pass expired, standard fees apply"
	}
	if result.Overstay {
		receipt.PenaltyInfo = fmt.Sprintf("Exceeded the time limit by %d hours at %s per hour",
			fee.PenaltyHours, money(policy, policy.PenaltyPerHour))
	}
	if result.WarningIssued {
		receipt.WarningInfo = fmt.Sprintf("Warning %d of %d issued", result.Warnings, policy.WarningThreshold)
		if result.Suspended {
			receipt.WarningInfo += "; future entries are suspended"
		}
	}

	return receipt
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d hours", int64(math.Ceil(d.Hours())))
}
