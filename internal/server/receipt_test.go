package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-allocator/internal/parking"
)

func TestAllocationReceiptForVIPPass(t *testing.T) {
	policy := parking.DefaultPolicy()
	expiry := t0.Add(policy.VIPPassDuration)
	vehicle := parking.Vehicle{
		LicensePlate:  "VIP1",
		Class:         parking.Large,
		CustomerClass: parking.VIPCustomer,
		TicketID:      "ABCD1234",
		ReEntryCount:  1,
		VIPPassExpiry: &expiry,
	}
	slot := *parking.NewSlot(3, 1, parking.Large, parking.VIPSection, 1)
	slot.Occupancy = &parking.Occupancy{Vehicle: vehicle, AllocatedAt: t0}

	receipt, err := NewAllocationReceipt(policy, slot, false)
	require.NoError(t, err)

	assert.Equal(t, "L1-L-VIP-01", receipt.SlotID)
	assert.Nil(t, receipt.ExpiresAt)
	assert.Equal(t, "No limit while the VIP pass is active", receipt.TimeLimit)
	assert.Equal(t, "₹4000.00", receipt.Pricing.VIPMonthlyPass)
	assert.Equal(t, "₹200.00", receipt.Pricing.DailyRate)
	assert.Equal(t, "₹50.00", receipt.Pricing.ReEntryFee)
	assert.True(t, receipt.ReEntry)
	assert.Equal(t, "PARK-ABCD1234-20260101090000", receipt.QRCode)
}

func TestAllocationReceiptRequiresOccupancy(t *testing.T) {
	slot := *parking.NewSlot(1, 1, parking.Small, parking.RegularSection, 1)

	_, err := NewAllocationReceipt(parking.DefaultPolicy(), slot, false)
	require.Error(t, err)
	assert.True(t, parking.IsInternal(err))
}

func TestReleaseReceiptReportsSuspension(t *testing.T) {
	policy := parking.DefaultPolicy()
	vehicle := parking.Vehicle{
		LicensePlate:  "LATE1",
		Class:         parking.Small,
		CustomerClass: parking.RegularCustomer,
		TicketID:      "LATE0001",
	}
	exit := t0.Add(26 * time.Hour)
	fee, err := policy.ComputeExitFee(&vehicle, t0, exit)
	require.NoError(t, err)

	receipt := NewReleaseReceipt(policy, parking.ExitResult{
		Success:       true,
		Vehicle:       vehicle,
		Slot:          *parking.NewSlot(1, 1, parking.Small, parking.RegularSection, 1),
		AllocatedAt:   t0,
		ExitTime:      exit,
		Fee:           fee,
		Overstay:      fee.Overstay,
		WarningIssued: true,
		Warnings:      3,
		Suspended:     true,
	})

	assert.Equal(t, "₹240.00", receipt.TotalFee)
	assert.Equal(t, int64(2), receipt.PenaltyHours)
	assert.Equal(t, "Warning 3 of 3 issued; future entries are suspended", receipt.WarningInfo)
	assert.Contains(t, receipt.PenaltyInfo, "2 hours")
	assert.Empty(t, receipt.VIPPass)
	assert.Equal(t, "RELEASE-LATE0001-20260102110000", receipt.QRCode)
}

func TestReleaseReceiptForLapsedVIPPass(t *testing.T) {
	policy := parking.DefaultPolicy()
	lapsed := t0.Add(time.Hour)
	vehicle := parking.Vehicle{
		LicensePlate:  "VIP2",
		Class:         parking.Medium,
		CustomerClass: parking.VIPCustomer,
		TicketID:      "VIP00002",
		VIPPassExpiry: &lapsed,
	}
	exit := t0.Add(10 * time.Hour)
	fee, err := policy.ComputeExitFee(&vehicle, t0, exit)
	require.NoError(t, err)
	require.False(t, fee.PassApplied)

	receipt := NewReleaseReceipt(policy, parking.ExitResult{
		Success:     true,
		Vehicle:     vehicle,
		Slot:        *parking.NewSlot(1, 1, parking.Medium, parking.VIPSection, 1),
		AllocatedAt: t0,
		ExitTime:    exit,
		Fee:         fee,
	})

	assert.Equal(t, "VIP pass expired, standard fees apply", receipt.VIPPass)
	assert.Equal(t, "₹150.00", receipt.TotalFee)
}

func TestReleaseReceiptForActiveVIPPass(t *testing.T) {
	policy := parking.DefaultPolicy()
	expiry := t0.Add(policy.VIPPassDuration)
	vehicle := parking.Vehicle{
		LicensePlate:  "VIP3",
		Class:         parking.Small,
		CustomerClass: parking.VIPCustomer,
		TicketID:      "VIP00003",
		VIPPassExpiry: &expiry,
	}
	exit := t0.Add(5 * time.Hour)
	fee, err := policy.ComputeExitFee(&vehicle, t0, exit)
	require.NoError(t, err)

	receipt := NewReleaseReceipt(policy, parking.ExitResult{
		Success:  true,
		Vehicle:  vehicle,
		ExitTime: exit,
		Fee:      fee,
	})

	assert.Contains(t, receipt.VIPPass, "Covered by VIP pass valid until")
	assert.Equal(t, "₹0.00", receipt.TotalFee)
}
