package parking

import (
	"fmt"
	"time"
)

// Occupancy is present on a slot exactly while a vehicle is parked in it.
type Occupancy struct {
	Vehicle     Vehicle
	AllocatedAt time.Time
}

type Slot struct {
	ID        string
	Number    int
	Level     int
	Class     VehicleClass
	Section   Section
	Occupancy *Occupancy
}

func NewSlot(number, level int, class VehicleClass, section Section, index int) *Slot {
	return &Slot{
		ID:      fmt.Sprintf("L%d-%s-%s-%02d", level, class.code(), section.code(), index),
		Number:  number,
		Level:   level,
		Class:   class,
		Section: section,
	}
}

func (s *Slot) IsOccupied() bool {
	return s.Occupancy != nil
}

func (s *Slot) Park(vehicle *Vehicle, at time.Time) {
	s.Occupancy = &Occupancy{
		Vehicle:     vehicle.clone(),
		AllocatedAt: at,
	}
}

func (s *Slot) Leave() *Occupancy {
	occupancy := s.Occupancy
	s.Occupancy = nil
	return occupancy
}

// snapshot copies the slot so callers never hold a reference into the inventory.
func (s *Slot) snapshot() Slot {
	c := *s
	if s.Occupancy != nil {
		occ := Occupancy{
			Vehicle:     s.Occupancy.Vehicle.clone(),
			AllocatedAt: s.Occupancy.AllocatedAt,
		}
		c.Occupancy = &occ
	}
	return c
}
