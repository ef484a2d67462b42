package parking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestLot(t *testing.T, clock *fakeClock, opts ...Option) *ParkingLot {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	pl, err := NewParkingLot(DefaultPolicy(), DefaultLayout(), opts...)
	require.NoError(t, err)
	return pl
}

func park(t *testing.T, pl *ParkingLot, plate string, class VehicleClass, customer CustomerClass, wantsEV bool) (*Vehicle, Slot) {
	t.Helper()
	v := NewVehicle(plate, class, customer)
	slot, err := pl.Enter(v, wantsEV)
	require.NoError(t, err)
	return v, slot
}
