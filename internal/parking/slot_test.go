package parking

import (
	"testing"
	"time"
)

func TestNewSlot(t *testing.T) {
	slot := NewSlot(7, 2, Large, EVSection, 3)

	if slot.ID != "L2-L-EV-03" {
		t.Errorf("Expected slot id L2-L-EV-03, got %s", slot.ID)
	}
	if slot.Number != 7 {
		t.Errorf("Expected slot number 7, got %d", slot.Number)
	}
	if slot.IsOccupied() {
		t.Error("Expected new slot to be unoccupied")
	}
	if slot.Occupancy != nil {
		t.Error("Expected new slot to have no occupancy")
	}
}

func TestSlotParkAndLeave(t *testing.T) {
	slot := NewSlot(1, 1, Small, RegularSection, 1)
	vehicle := NewVehicle("KA01HH1234", Small, RegularCustomer)

	slot.Park(vehicle, t0)

	if !slot.IsOccupied() {
		t.Fatal("Expected slot to be occupied after parking")
	}
	if slot.Occupancy.Vehicle.LicensePlate != "KA01HH1234" {
		t.Errorf("Expected parked plate KA01HH1234, got %s", slot.Occupancy.Vehicle.LicensePlate)
	}
	if !slot.Occupancy.AllocatedAt.Equal(t0) {
		t.Errorf("Expected allocation time %v, got %v", t0, slot.Occupancy.AllocatedAt)
	}

	occupancy := slot.Leave()
	if slot.IsOccupied() {
		t.Error("Expected slot to be unoccupied after leaving")
	}
	if occupancy == nil || occupancy.Vehicle.LicensePlate != "KA01HH1234" {
		t.Error("Expected leave to return the parked occupancy")
	}
}

func TestSlotSnapshotIsDetached(t *testing.T) {
	slot := NewSlot(1, 1, Small, VIPSection, 1)
	expiry := t0.Add(time.Hour)
	vehicle := NewVehicle("VIP1", Small, VIPCustomer)
	vehicle.VIPPassExpiry = &expiry
	slot.Park(vehicle, t0)

	snap := slot.snapshot()
	snap.Occupancy.Vehicle.LicensePlate = "CHANGED"
	*snap.Occupancy.Vehicle.VIPPassExpiry = t0

	if slot.Occupancy.Vehicle.LicensePlate != "VIP1" {
		t.Error("Expected snapshot edits not to reach the inventory")
	}
	if !slot.Occupancy.Vehicle.VIPPassExpiry.Equal(expiry) {
		t.Error("Expected snapshot pass expiry to be a copy")
	}
}
