package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// EntryRequest asks for a slot. A missing license plate is generated.
type EntryRequest struct {
	LicensePlate string `json:"license_plate" validate:"omitempty,max=16,printascii"`
	VehicleType  string `json:"vehicle_type" validate:"required"`
	CustomerType string `json:"customer_type" validate:"required"`
	IsEV         bool   `json:"is_ev"`
}

type ExitRequest struct {
	TicketID string `json:"ticket_id" validate:"required,alphanum,max=32"`
}

type SlotView struct {
	ID           string     `json:"id"`
	Number       int        `json:"number"`
	Level        int        `json:"level"`
	VehicleClass string     `json:"vehicle_class"`
	Section      string     `json:"section"`
	Occupied     bool       `json:"occupied"`
	TicketID     string     `json:"ticket_id,omitempty"`
	LicensePlate string     `json:"license_plate,omitempty"`
	Customer     string     `json:"customer_class,omitempty"`
	AllocatedAt  *time.Time `json:"allocated_at,omitempty"`
}

type CountersView struct {
	Total     int `json:"total"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
	Expired   int `json:"expired"`
}

// LevelMap groups slots as level -> vehicle class -> section.
type LevelMap map[int]map[string]map[string][]SlotView

type StatusResponse struct {
	Counters  CountersView `json:"counters"`
	Levels    LevelMap     `json:"levels"`
	Occupied  []SlotView   `json:"occupied"`
	Rules     []string     `json:"rules"`
	Timestamp time.Time    `json:"timestamp"`
}

type VehicleResponse struct {
	LicensePlate  string     `json:"license_plate"`
	Slot          SlotView   `json:"slot"`
	Warnings      int        `json:"warnings"`
	Suspended     bool       `json:"suspended"`
	VIPPassExpiry *time.Time `json:"vip_pass_expiry,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteSuccessStatus(ctx, w, http.StatusOK, message, data)
}

func WriteSuccessStatus(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
