package parking

import (
	"strings"
	"time"
)

type Vehicle struct {
	LicensePlate  string
	Class         VehicleClass
	CustomerClass CustomerClass
	TicketID      string
	ReEntryCount  int
	VIPPassExpiry *time.Time
}

func NewVehicle(licensePlate string, class VehicleClass, customerClass CustomerClass) *Vehicle {
	return &Vehicle{
		LicensePlate:  NormalizePlate(licensePlate),
		Class:         class,
		CustomerClass: customerClass,
	}
}

// NormalizePlate trims and upper-cases a plate so lookups are case-insensitive.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func (v *Vehicle) IsVIP() bool {
	return v.CustomerClass == VIPCustomer
}

// HasActivePass reports whether the vehicle carries a VIP pass that is still valid at t.
func (v *Vehicle) HasActivePass(t time.Time) bool {
	return v.IsVIP() && v.VIPPassExpiry != nil && t.Before(*v.VIPPassExpiry)
}

func (v *Vehicle) clone() Vehicle {
	c := *v
	if v.VIPPassExpiry != nil {
		expiry := *v.VIPPassExpiry
		c.VIPPassExpiry = &expiry
	}
	return c
}
