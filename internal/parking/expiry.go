package parking

import "time"

type Counters struct {
	Total     int
	Occupied  int
	Available int
	Expired   int
}

// ExpiredSlots returns every occupied slot whose stay at now exceeds the
// applicable time limit. It only reports; release and penalties happen at exit.
func (pl *ParkingLot) ExpiredSlots(now time.Time) ([]Slot, error) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return sweepExpired(pl.policy, pl.slots, now)
}

func (pl *ParkingLot) Counters(now time.Time) (Counters, error) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	expired, err := sweepExpired(pl.policy, pl.slots, now)
	if err != nil {
		return Counters{}, err
	}
	return Counters{
		Total:     len(pl.slots),
		Occupied:  len(pl.tickets),
		Available: len(pl.slots) - len(pl.tickets),
		Expired:   len(expired),
	}, nil
}

func sweepExpired(policy Policy, slots []*Slot, now time.Time) ([]Slot, error) {
	var expired []Slot
	for _, slot := range slots {
		if !slot.IsOccupied() {
			continue
		}
		limit, limited, err := policy.EffectiveLimit(&slot.Occupancy.Vehicle, now)
		if err != nil {
			return nil, err
		}
		if limited && now.Sub(slot.Occupancy.AllocatedAt) > limit {
			expired = append(expired, slot.snapshot())
		}
	}
	return expired, nil
}

// Deadline is when the occupancy exceeds its limit. ok is false for a VIP
// stay covered by an active pass at now.
func (o *Occupancy) Deadline(policy Policy, now time.Time) (deadline time.Time, ok bool, err error) {
	limit, limited, err := policy.EffectiveLimit(&o.Vehicle, now)
	if err != nil || !limited {
		return time.Time{}, false, err
	}
	return o.AllocatedAt.Add(limit), true, nil
}
