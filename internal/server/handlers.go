package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"parking-allocator/internal/logging"
	"parking-allocator/internal/parking"
)

type Handler struct {
	lot         *parking.InstrumentedParkingLot
	hub         *Hub
	serviceName string
	validate    *validator.Validate
}

func NewHandler(lot *parking.InstrumentedParkingLot, hub *Hub, serviceName string) *Handler {
	return &Handler{
		lot:         lot,
		hub:         hub,
		serviceName: serviceName,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

// decode reads a JSON body into dst and runs its validate tags. The returned
// message is safe to show to the caller.
func (h *Handler) decode(r *http.Request, dst any) (string, bool) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return "Invalid request body", false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return "Invalid request: " + strings.Join(fields, ", "), false
		}
		return "Invalid request", false
	}
	return "", true
}

func (h *Handler) generatePlate() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
	return fmt.Sprintf("AUTO-%s-%s", h.lot.Now().Format("20060102"), suffix)
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EntryRequest
	if msg, ok := h.decode(r, &req); !ok {
		WriteError(ctx, w, http.StatusBadRequest, msg)
		return
	}

	class, err := parking.ParseVehicleClass(req.VehicleType)
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid vehicle type: "+req.VehicleType)
		return
	}
	customer, err := parking.ParseCustomerClass(req.CustomerType)
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid customer type: "+req.CustomerType)
		return
	}

	plate := strings.TrimSpace(req.LicensePlate)
	if plate == "" {
		plate = h.generatePlate()
	}

	vehicle := parking.NewVehicle(plate, class, customer)
	slot, err := h.lot.Enter(ctx, vehicle, req.IsEV)

	var rejected *parking.EntryRejectedError
	switch {
	case errors.As(err, &rejected):
		WriteError(ctx, w, http.StatusUnprocessableEntity, rejected.Reason)
		return
	case errors.Is(err, parking.ErrNoSlotAvailable):
		WriteError(ctx, w, http.StatusConflict, "No suitable slot available. Please try again later.")
		return
	case err != nil:
		logging.Error(ctx, "entry failed", "license_plate", vehicle.LicensePlate, "error", err)
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	receipt, err := NewAllocationReceipt(h.lot.Policy(), slot, req.IsEV)
	if err != nil {
		logging.Error(ctx, "building allocation receipt", "ticket_id", vehicle.TicketID, "error", err)
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.publish(r, MessageAllocated, receipt)
	WriteSuccessStatus(ctx, w, http.StatusCreated, "Slot allocated", receipt)
}

func (h *Handler) CreateExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ExitRequest
	if msg, ok := h.decode(r, &req); !ok {
		WriteError(ctx, w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.lot.ProcessExit(ctx, req.TicketID)
	if err != nil {
		logging.Error(ctx, "exit failed", "ticket_id", req.TicketID, "error", err)
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !result.Success {
		WriteError(ctx, w, http.StatusNotFound, result.Reason)
		return
	}

	receipt := NewReleaseReceipt(h.lot.Policy(), result)
	h.publish(r, MessageReleased, receipt)
	WriteSuccess(ctx, w, "Slot released", receipt)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.status(r)
	if err != nil {
		logging.Error(ctx, "building status", "error", err)
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteSuccess(ctx, w, "Status retrieved successfully", status)
}

func (h *Handler) GetExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expired, err := h.lot.ExpiredSlots(ctx, h.lot.Now())
	if err != nil {
		logging.Error(ctx, "listing expired slots", "error", err)
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views := make([]SlotView, 0, len(expired))
	for _, slot := range expired {
		views = append(views, newSlotView(slot))
	}
	WriteSuccess(ctx, w, "Expired slots retrieved", views)
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plate := parking.NormalizePlate(chi.URLParam(r, "plate"))
	if plate == "" {
		WriteError(ctx, w, http.StatusBadRequest, "License plate is required")
		return
	}

	slot, ok := h.lot.FindByPlate(ctx, plate)
	if !ok {
		WriteError(ctx, w, http.StatusNotFound, "Vehicle not found")
		return
	}

	resp := VehicleResponse{
		LicensePlate: plate,
		Slot:         newSlotView(slot),
		Warnings:     h.lot.Warnings(plate),
		Suspended:    h.lot.IsSuspended(plate),
	}
	if expiry, ok := h.lot.VIPPassExpiry(plate); ok {
		resp.VIPPassExpiry = &expiry
	}
	WriteSuccess(ctx, w, "Vehicle found", resp)
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var initial *Message
	if status, err := h.status(r); err == nil {
		initial = &Message{Type: MessageStatusUpdate, Payload: status, Timestamp: status.Timestamp}
	}
	h.hub.ServeWS(w, r, initial)
}

func (h *Handler) status(r *http.Request) (StatusResponse, error) {
	snap, err := h.lot.Snapshot(r.Context(), h.lot.Now())
	if err != nil {
		return StatusResponse{}, err
	}

	levels := make(LevelMap)
	for _, slot := range snap.Slots {
		classes, ok := levels[slot.Level]
		if !ok {
			classes = make(map[string]map[string][]SlotView)
			levels[slot.Level] = classes
		}
		sections, ok := classes[slot.Class.String()]
		if !ok {
			sections = make(map[string][]SlotView)
			classes[slot.Class.String()] = sections
		}
		sections[slot.Section.String()] = append(sections[slot.Section.String()], newSlotView(slot))
	}

	views := make([]SlotView, 0, len(snap.Occupied))
	for _, slot := range snap.Occupied {
		views = append(views, newSlotView(slot))
	}

	return StatusResponse{
		Counters: CountersView{
			Total:     snap.Counters.Total,
			Occupied:  snap.Counters.Occupied,
			Available: snap.Counters.Available,
			Expired:   snap.Counters.Expired,
		},
		Levels:    levels,
		Occupied:  views,
		Rules:     h.lot.Policy().RulesText(),
		Timestamp: snap.Taken,
	}, nil
}

// publish pushes the event and a fresh status to websocket clients.
// Failures are logged; the HTTP response is already decided.
func (h *Handler) publish(r *http.Request, msgType MessageType, payload any) {
	ctx := r.Context()
	if err := h.hub.Broadcast(ctx, msgType, payload); err != nil {
		logging.Warn(ctx, "broadcasting event", "type", string(msgType), "error", err)
	}

	status, err := h.status(r)
	if err != nil {
		logging.Warn(ctx, "building status update", "error", err)
		return
	}
	if err := h.hub.Broadcast(ctx, MessageStatusUpdate, status); err != nil {
		logging.Warn(ctx, "broadcasting status update", "error", err)
	}
}

func newSlotView(slot parking.Slot) SlotView {
	view := SlotView{
		ID:           slot.ID,
		Number:       slot.Number,
		Level:        slot.Level,
		VehicleClass: slot.Class.String(),
		Section:      slot.Section.String(),
		Occupied:     slot.IsOccupied(),
	}
	if occ := slot.Occupancy; occ != nil {
		allocatedAt := occ.AllocatedAt
		view.TicketID = occ.Vehicle.TicketID
		view.LicensePlate = occ.Vehicle.LicensePlate
		view.Customer = occ.Vehicle.CustomerClass.String()
		view.AllocatedAt = &allocatedAt
	}
	return view
}
