package server

import (
	"encoding/json"
	"io"
	"net/http"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.http.Client().Get(env.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "parking-test", health.Service)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/status", nil)
	_, err := uuid.Parse(resp.Header.Get("X-Request-ID"))
	assert.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, env.http.URL+"/api/status", nil)
	require.NoError(t, err)
	id := uuid.New().String()
	req.Header.Set("X-Request-ID", id)
	resp2, err := env.http.Client().Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, id, resp2.Header.Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodOptions, "/api/parking/entries", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCreateEntry(t *testing.T) {
	env := newTestEnv(t)

	receipt := env.enter(t, EntryRequest{LicensePlate: "abc123", VehicleType: "small", CustomerType: "regular"})

	assert.Equal(t, "T0001", receipt.TicketID)
	assert.Equal(t, "L1-S-REG-01", receipt.SlotID)
	assert.Equal(t, "ABC123", receipt.LicensePlate)
	assert.Equal(t, "Regular", receipt.Section)
	assert.Equal(t, "24 hours", receipt.TimeLimit)
	require.NotNil(t, receipt.ExpiresAt)
	assert.True(t, receipt.ExpiresAt.Equal(t0.Add(24*time.Hour)))
	assert.Equal(t, "PARK-T0001-20260101090000", receipt.QRCode)
	assert.Equal(t, "₹100.00", receipt.Pricing.DailyRate)
	assert.NotEmpty(t, receipt.Rules)
}

func TestCreateEntryGeneratesPlate(t *testing.T) {
	env := newTestEnv(t)

	receipt := env.enter(t, EntryRequest{VehicleType: "medium", CustomerType: "regular"})
	assert.True(t, strings.HasPrefix(receipt.LicensePlate, "AUTO-20260101-"), receipt.LicensePlate)

	other := env.enter(t, EntryRequest{VehicleType: "medium", CustomerType: "vip"})
	assert.NotEqual(t, receipt.LicensePlate, other.LicensePlate)
}

func TestCreateEntryRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body any
	}{
		{"missing vehicle type", EntryRequest{CustomerType: "regular"}},
		{"missing customer type", EntryRequest{VehicleType: "small"}},
		{"unknown vehicle type", EntryRequest{VehicleType: "huge", CustomerType: "regular"}},
		{"unknown customer type", EntryRequest{VehicleType: "small", CustomerType: "gold"}},
		{"plate too long", EntryRequest{LicensePlate: strings.Repeat("X", 17), VehicleType: "small", CustomerType: "regular"}},
		{"not json", "nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/parking/entries", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
	assert.Equal(t, 0, env.lot.ActiveTickets())
}

func TestCreateEntryDuplicatePlate(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "DUP1", VehicleType: "small", CustomerType: "regular"})

	resp, body := env.do(t, http.MethodPost, "/api/parking/entries",
		EntryRequest{LicensePlate: "dup1", VehicleType: "large", CustomerType: "regular"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body.Error, "already holds active ticket T0001")
}

func TestCreateEntryNoSlot(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "EV1", VehicleType: "large", CustomerType: "regular", IsEV: true})

	resp, body := env.do(t, http.MethodPost, "/api/parking/entries",
		EntryRequest{LicensePlate: "EV2", VehicleType: "large", CustomerType: "regular", IsEV: true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body.Error, "No suitable slot")
}

func TestCreateExitWithOverstay(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "ABC123", VehicleType: "small", CustomerType: "regular"})

	env.clock.Advance(30 * time.Hour)

	resp, body := env.do(t, http.MethodPost, "/api/parking/exits", ExitRequest{TicketID: "t0001"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)

	var receipt ReleaseReceipt
	require.NoError(t, json.Unmarshal(body.Data, &receipt))
	assert.Equal(t, "L1-S-REG-01", receipt.SlotID)
	assert.Equal(t, 30.0, receipt.DurationHours)
	assert.Equal(t, int64(2), receipt.BilledDays)
	assert.Equal(t, "₹200.00", receipt.BaseFee)
	assert.Equal(t, "₹120.00", receipt.Penalty)
	assert.Equal(t, "₹320.00", receipt.TotalFee)
	assert.True(t, receipt.Overstay)
	assert.Equal(t, 1, receipt.Warnings)
	assert.True(t, receipt.WarningIssued)
	assert.NotEmpty(t, receipt.PenaltyInfo)
	assert.Equal(t, "RELEASE-T0001-20260102150000", receipt.QRCode)

	resp, body = env.do(t, http.MethodPost, "/api/parking/exits", ExitRequest{TicketID: "T0001"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ticket not found", body.Error)
}

func TestCreateExitRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/parking/exits", ExitRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/parking/exits", ExitRequest{TicketID: "T-0001"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "S1", VehicleType: "small", CustomerType: "regular"})
	env.enter(t, EntryRequest{LicensePlate: "V1", VehicleType: "large", CustomerType: "vip"})

	resp, body := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.Equal(t, CountersView{Total: 9, Occupied: 2, Available: 7}, status.Counters)
	require.Len(t, status.Occupied, 2)
	assert.Equal(t, "L1-S-REG-01", status.Occupied[0].ID)
	assert.Equal(t, "L1-L-VIP-01", status.Occupied[1].ID)

	require.Contains(t, status.Levels, 1)
	vip := status.Levels[1]["Large"]["VIP"]
	require.Len(t, vip, 1)
	assert.True(t, vip[0].Occupied)
	assert.Equal(t, "V1", vip[0].LicensePlate)
	assert.False(t, status.Levels[1]["Medium"]["EV"][0].Occupied)

	assert.NotEmpty(t, status.Rules)
	assert.True(t, status.Timestamp.Equal(t0))
}

func TestGetStatusAgreesWithSlotMapUnderConcurrentEntries(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			classes := []string{"small", "medium", "large"}
			env.do(t, http.MethodPost, "/api/parking/entries", EntryRequest{
				LicensePlate: fmt.Sprintf("CC%02d", i),
				VehicleType:  classes[i%len(classes)],
				CustomerType: "regular",
			})
		}(i)
	}

	for i := 0; i < 10; i++ {
		resp, body := env.do(t, http.MethodGet, "/api/status", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status StatusResponse
		require.NoError(t, json.Unmarshal(body.Data, &status))

		inMap := 0
		for _, classes := range status.Levels {
			for _, sections := range classes {
				for _, slots := range sections {
					for _, slot := range slots {
						if slot.Occupied {
							inMap++
						}
					}
				}
			}
		}
		assert.Equal(t, status.Counters.Occupied, len(status.Occupied))
		assert.Equal(t, status.Counters.Occupied, inMap)
		assert.Equal(t, status.Counters.Total, status.Counters.Occupied+status.Counters.Available)
	}
	wg.Wait()
}

func TestGetExpired(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "R1", VehicleType: "small", CustomerType: "regular"})
	env.enter(t, EntryRequest{LicensePlate: "V1", VehicleType: "small", CustomerType: "vip"})

	env.clock.Advance(25 * time.Hour)

	resp, body := env.do(t, http.MethodGet, "/api/slots/expired", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var expired []SlotView
	require.NoError(t, json.Unmarshal(body.Data, &expired))
	require.Len(t, expired, 1)
	assert.Equal(t, "R1", expired[0].LicensePlate)
}

func TestGetVehicle(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "VIP7", VehicleType: "medium", CustomerType: "vip"})

	resp, body := env.do(t, http.MethodGet, "/api/vehicles/vip7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vehicle VehicleResponse
	require.NoError(t, json.Unmarshal(body.Data, &vehicle))
	assert.Equal(t, "VIP7", vehicle.LicensePlate)
	assert.Equal(t, "L1-M-VIP-01", vehicle.Slot.ID)
	assert.Equal(t, "T0001", vehicle.Slot.TicketID)
	require.NotNil(t, vehicle.VIPPassExpiry)
	assert.True(t, vehicle.VIPPassExpiry.Equal(t0.Add(30*24*time.Hour)))

	resp, _ = env.do(t, http.MethodGet, "/api/vehicles/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.enter(t, EntryRequest{LicensePlate: "M1", VehicleType: "medium", CustomerType: "regular"})

	resp, err := env.http.Client().Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "parking_slots_total 9")
	assert.Contains(t, text, "parking_slots_occupied 1")
	assert.Contains(t, text, "parking_slots_available 8")
	assert.Contains(t, text, `parking_section_occupied{level="1",section="Regular",vehicle_class="Medium"} 1`)
	assert.Contains(t, text, "parking_websocket_clients 0")
}
