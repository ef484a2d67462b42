package parking

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const Levels = 2

type Layout struct {
	Levels          int
	SlotsPerSection map[Section]int
}

func DefaultLayout() Layout {
	return Layout{
		Levels: Levels,
		SlotsPerSection: map[Section]int{
			RegularSection: 4,
			EVSection:      2,
			VIPSection:     2,
		},
	}
}

func (l Layout) Capacity() int {
	perLevel := 0
	for _, section := range Sections {
		perLevel += l.SlotsPerSection[section]
	}
	return l.Levels * len(VehicleClasses) * perLevel
}

type Option func(*ParkingLot)

// WithClock replaces the engine clock. Times it returns are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(pl *ParkingLot) {
		pl.now = func() time.Time { return now().UTC() }
	}
}

func WithTicketGenerator(next func() string) Option {
	return func(pl *ParkingLot) {
		pl.nextTicket = next
	}
}

// ParkingLot owns the slot inventory and every per-plate registry. All state
// is guarded by mu; mutators hold the write lock for the whole transaction.
type ParkingLot struct {
	mu     sync.RWMutex
	policy Policy
	layout Layout

	slots      []*Slot
	tickets    map[string]*Slot
	active     map[string]string
	vipPasses  map[string]time.Time
	warnings   map[string]int
	departures map[string]time.Time
	evClasses  map[VehicleClass]bool

	now        func() time.Time
	nextTicket func() string
}

type ExitResult struct {
	Success       bool
	Reason        string
	Vehicle       Vehicle
	Slot          Slot
	AllocatedAt   time.Time
	ExitTime      time.Time
	Fee           FeeBreakdown
	Overstay      bool
	WarningIssued bool
	Warnings      int
	Suspended     bool
}

func NewParkingLot(policy Policy, layout Layout, opts ...Option) (*ParkingLot, error) {
	if err := policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid policy")
	}
	if layout.Levels < 1 {
		return nil, errors.Newf("layout needs at least one level, got %d", layout.Levels)
	}
	for section, n := range layout.SlotsPerSection {
		if n < 0 {
			return nil, errors.Newf("negative slot count %d for section %s", n, section)
		}
	}
	if layout.Capacity() == 0 {
		return nil, errors.New("layout has no slots")
	}

	pl := &ParkingLot{
		policy:     policy,
		layout:     layout,
		tickets:    make(map[string]*Slot),
		active:     make(map[string]string),
		vipPasses:  make(map[string]time.Time),
		warnings:   make(map[string]int),
		departures: make(map[string]time.Time),
		evClasses:  make(map[VehicleClass]bool),
		now:        func() time.Time { return time.Now().UTC() },
		nextTicket: newTicketID,
	}
	for _, opt := range opts {
		opt(pl)
	}

	number := 0
	for level := 1; level <= layout.Levels; level++ {
		for _, class := range VehicleClasses {
			for _, section := range Sections {
				for i := 1; i <= layout.SlotsPerSection[section]; i++ {
					number++
					pl.slots = append(pl.slots, NewSlot(number, level, class, section, i))
					if section == EVSection {
						pl.evClasses[class] = true
					}
				}
			}
		}
	}

	return pl, nil
}

func newTicketID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func normalizeTicket(ticketID string) string {
	return strings.ToUpper(strings.TrimSpace(ticketID))
}

func (pl *ParkingLot) Policy() Policy {
	return pl.policy
}

func (pl *ParkingLot) Capacity() int {
	return len(pl.slots)
}

func (pl *ParkingLot) Now() time.Time {
	return pl.now()
}

// ValidateEntry runs the entry checks in order and stops at the first failure.
// It never mutates state.
func (pl *ParkingLot) ValidateEntry(vehicle *Vehicle, wantsEV bool) (bool, string) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.validateLocked(vehicle, wantsEV)
}

func (pl *ParkingLot) validateLocked(vehicle *Vehicle, wantsEV bool) (bool, string) {
	if vehicle == nil || vehicle.LicensePlate == "" {
		return false, "license plate is required"
	}
	if !vehicle.Class.Valid() {
		return false, "invalid vehicle class"
	}
	if !vehicle.CustomerClass.Valid() {
		return false, "invalid customer class"
	}

	plate := NormalizePlate(vehicle.LicensePlate)
	if n := pl.warnings[plate]; pl.policy.Suspended(n) {
		return false, fmt.Sprintf("license plate %s is suspended after %d warnings", plate, n)
	}
	if wantsEV && !pl.evClasses[vehicle.Class] {
		return false, fmt.Sprintf("EV charging is not available for %s vehicles", vehicle.Class)
	}
	if ticket, ok := pl.active[plate]; ok {
		return false, fmt.Sprintf("license plate %s already holds active ticket %s", plate, ticket)
	}
	return true, ""
}

// AllocateSlot parks the vehicle in the first free slot of its preferred
// section, lowest level first. ok is false when the lot has no eligible slot
// or the plate already holds an active ticket.
// On success the vehicle is stamped with its ticket, re-entry count and VIP pass.
func (pl *ParkingLot) AllocateSlot(vehicle *Vehicle, wantsEV bool) (Slot, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.allocateLocked(vehicle, wantsEV)
}

// Enter validates and allocates inside one critical section, so two requests
// for the same plate can never both pass validation.
func (pl *ParkingLot) Enter(vehicle *Vehicle, wantsEV bool) (Slot, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if ok, reason := pl.validateLocked(vehicle, wantsEV); !ok {
		return Slot{}, &EntryRejectedError{Reason: reason}
	}
	slot, ok := pl.allocateLocked(vehicle, wantsEV)
	if !ok {
		return Slot{}, ErrNoSlotAvailable
	}
	return slot, nil
}

func (pl *ParkingLot) allocateLocked(vehicle *Vehicle, wantsEV bool) (Slot, bool) {
	vehicle.LicensePlate = NormalizePlate(vehicle.LicensePlate)
	plate := vehicle.LicensePlate

	// One active ticket per plate.
	if _, ok := pl.active[plate]; ok {
		return Slot{}, false
	}

	slot := pl.findFreeLocked(vehicle, wantsEV)
	if slot == nil {
		return Slot{}, false
	}

	now := pl.now()

	reEntry := vehicle.ReEntryCount > 0
	if left, ok := pl.departures[plate]; ok {
		if now.Sub(left) <= pl.policy.ReEntryWindow {
			reEntry = true
		}
		delete(pl.departures, plate)
	}
	if reEntry {
		vehicle.ReEntryCount++
	}

	if vehicle.IsVIP() {
		expiry, ok := pl.vipPasses[plate]
		if !ok || !now.Before(expiry) {
			expiry = now.Add(pl.policy.VIPPassDuration)
			pl.vipPasses[plate] = expiry
		}
		vehicle.VIPPassExpiry = &expiry
	}

	ticket := normalizeTicket(pl.nextTicket())
	for pl.tickets[ticket] != nil {
		ticket = normalizeTicket(pl.nextTicket())
	}
	vehicle.TicketID = ticket

	slot.Park(vehicle, now)
	pl.tickets[ticket] = slot
	pl.active[plate] = ticket

	return slot.snapshot(), true
}

func preferredSection(vehicle *Vehicle, wantsEV bool) Section {
	switch {
	case wantsEV:
		return EVSection
	case vehicle.IsVIP():
		return VIPSection
	default:
		return RegularSection
	}
}

// findFreeLocked searches the preferred section across all levels, then falls
// back to the Regular section. EV requests never fall back.
func (pl *ParkingLot) findFreeLocked(vehicle *Vehicle, wantsEV bool) *Slot {
	sections := []Section{preferredSection(vehicle, wantsEV)}
	if sections[0] == VIPSection {
		sections = append(sections, RegularSection)
	}

	for _, section := range sections {
		for _, slot := range pl.slots {
			if slot.Class == vehicle.Class && slot.Section == section && !slot.IsOccupied() {
				return slot
			}
		}
	}
	return nil
}

// ProcessExit releases the slot behind ticketID and prices the stay. The fee
// is computed before anything is mutated, so an internal error leaves the
// inventory untouched.
func (pl *ParkingLot) ProcessExit(ticketID string) (ExitResult, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	ticketID = normalizeTicket(ticketID)
	slot, ok := pl.tickets[ticketID]
	if !ok {
		return ExitResult{Success: false, Reason: ErrTicketNotFound.Error()}, nil
	}
	occupancy := slot.Occupancy
	if occupancy == nil {
		return ExitResult{}, errors.Mark(
			errors.AssertionFailedf("ticket %s maps to empty slot %s", ticketID, slot.ID), ErrInternal)
	}

	exitTime := pl.now()
	vehicle := occupancy.Vehicle.clone()
	fee, err := pl.policy.ComputeExitFee(&vehicle, occupancy.AllocatedAt, exitTime)
	if err != nil {
		return ExitResult{}, errors.Wrapf(err, "pricing ticket %s", ticketID)
	}

	released := slot.snapshot()
	plate := vehicle.LicensePlate
	warnings := pl.warnings[plate]
	if fee.Overstay {
		warnings++
		pl.warnings[plate] = warnings
	}

	slot.Leave()
	delete(pl.tickets, ticketID)
	if pl.active[plate] == ticketID {
		delete(pl.active, plate)
	}
	pl.departures[plate] = exitTime

	return ExitResult{
		Success:       true,
		Vehicle:       vehicle,
		Slot:          released,
		AllocatedAt:   occupancy.AllocatedAt,
		ExitTime:      exitTime,
		Fee:           fee,
		Overstay:      fee.Overstay,
		WarningIssued: fee.Overstay,
		Warnings:      warnings,
		Suspended:     pl.policy.Suspended(warnings),
	}, nil
}

func (pl *ParkingLot) AllSlots() []Slot {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	slots := make([]Slot, 0, len(pl.slots))
	for _, slot := range pl.slots {
		slots = append(slots, slot.snapshot())
	}
	return slots
}

// OccupiedSlots returns the occupied slots ordered by slot number.
func (pl *ParkingLot) OccupiedSlots() []Slot {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	var occupied []Slot
	for _, slot := range pl.slots {
		if slot.IsOccupied() {
			occupied = append(occupied, slot.snapshot())
		}
	}
	return occupied
}

// LotSnapshot is a consistent view of the lot taken under one read lock.
type LotSnapshot struct {
	Counters Counters
	Slots    []Slot
	Occupied []Slot
	Taken    time.Time
}

// Snapshot reads counters, every slot and the occupied slots at now in one
// critical section, so the three always agree.
func (pl *ParkingLot) Snapshot(now time.Time) (LotSnapshot, error) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	expired, err := sweepExpired(pl.policy, pl.slots, now)
	if err != nil {
		return LotSnapshot{}, err
	}

	snap := LotSnapshot{
		Counters: Counters{
			Total:     len(pl.slots),
			Occupied:  len(pl.tickets),
			Available: len(pl.slots) - len(pl.tickets),
			Expired:   len(expired),
		},
		Slots: make([]Slot, 0, len(pl.slots)),
		Taken: now,
	}
	for _, slot := range pl.slots {
		s := slot.snapshot()
		snap.Slots = append(snap.Slots, s)
		if s.IsOccupied() {
			snap.Occupied = append(snap.Occupied, s)
		}
	}
	return snap, nil
}

func (pl *ParkingLot) AvailableCount() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.slots) - len(pl.tickets)
}

func (pl *ParkingLot) ActiveTickets() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.tickets)
}

func (pl *ParkingLot) SlotByTicket(ticketID string) (Slot, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	slot, ok := pl.tickets[normalizeTicket(ticketID)]
	if !ok {
		return Slot{}, false
	}
	return slot.snapshot(), true
}

func (pl *ParkingLot) FindByPlate(plate string) (Slot, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	ticket, ok := pl.active[NormalizePlate(plate)]
	if !ok {
		return Slot{}, false
	}
	return pl.tickets[ticket].snapshot(), true
}

func (pl *ParkingLot) Warnings(plate string) int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.warnings[NormalizePlate(plate)]
}

func (pl *ParkingLot) IsSuspended(plate string) bool {
	return pl.policy.Suspended(pl.Warnings(plate))
}

// VIPPassExpiry returns the recorded pass expiry for plate. A returned expiry
// may already be in the past; passes lapse by comparison, never by removal.
func (pl *ParkingLot) VIPPassExpiry(plate string) (time.Time, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	expiry, ok := pl.vipPasses[NormalizePlate(plate)]
	return expiry, ok
}

func (pl *ParkingLot) HasEVCapacity(class VehicleClass) bool {
	return pl.evClasses[class]
}
