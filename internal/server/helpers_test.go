package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parking-allocator/internal/parking"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *Meta           `json:"meta"`
}

type testEnv struct {
	server *Server
	http   *httptest.Server
	lot    *parking.InstrumentedParkingLot
	clock  *testClock
}

// smallLayout has one slot per level, class and section: nine slots.
func smallLayout() parking.Layout {
	return parking.Layout{
		Levels: 1,
		SlotsPerSection: map[parking.Section]int{
			parking.RegularSection: 1,
			parking.EVSection:      1,
			parking.VIPSection:     1,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: t0}
	var seq atomic.Int64
	lot, err := parking.NewParkingLot(parking.DefaultPolicy(), smallLayout(),
		parking.WithClock(clock.Now),
		parking.WithTicketGenerator(func() string {
			return fmt.Sprintf("T%04d", seq.Add(1))
		}),
	)
	require.NoError(t, err)

	ipl, err := parking.NewInstrumentedParkingLot(lot, parking.NewNoopTelemetryProvider())
	require.NoError(t, err)

	srv := NewServer(ipl, Options{Port: "0", ServiceName: "parking-test"})
	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{server: srv, http: ts, lot: ipl, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func (e *testEnv) enter(t *testing.T, req EntryRequest) AllocationReceipt {
	t.Helper()

	resp, env := e.do(t, http.MethodPost, "/api/parking/entries", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	var receipt AllocationReceipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	return receipt
}
