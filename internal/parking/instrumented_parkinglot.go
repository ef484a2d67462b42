package parking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"parking-allocator/internal/logging"
)

type InstrumentedParkingLot struct {
	*ParkingLot
	telemetry *TelemetryProvider

	// Metrics
	allocationOperations metric.Int64Counter
	exitOperations       metric.Int64Counter
	warningsIssued       metric.Int64Counter
	occupancyGauge       metric.Int64UpDownCounter
	totalSlotsGauge      metric.Int64UpDownCounter
	operationDuration    metric.Float64Histogram
	feeAmount            metric.Float64Histogram
}

func NewInstrumentedParkingLot(lot *ParkingLot, telemetry *TelemetryProvider) (*InstrumentedParkingLot, error) {
	meter := telemetry.Meter()

	allocationOperations, err := meter.Int64Counter("parking_allocations_total",
		metric.WithDescription("Total number of slot allocation attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("parking_exits_total",
		metric.WithDescription("Total number of exit operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	warningsIssued, err := meter.Int64Counter("parking_warnings_total",
		metric.WithDescription("Overstay warnings issued at exit"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_lot_occupancy",
		metric.WithDescription("Current number of occupied parking slots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	totalSlotsGauge, err := meter.Int64UpDownCounter("parking_lot_total_slots",
		metric.WithDescription("Total number of parking slots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of parking lot operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	feeAmount, err := meter.Float64Histogram("parking_fee_amount",
		metric.WithDescription("Total fee charged per exit"),
		metric.WithUnit("{currency}"))
	if err != nil {
		return nil, err
	}

	ipl := &InstrumentedParkingLot{
		ParkingLot:           lot,
		telemetry:            telemetry,
		allocationOperations: allocationOperations,
		exitOperations:       exitOperations,
		warningsIssued:       warningsIssued,
		occupancyGauge:       occupancyGauge,
		totalSlotsGauge:      totalSlotsGauge,
		operationDuration:    operationDuration,
		feeAmount:            feeAmount,
	}

	totalSlotsGauge.Add(context.Background(), int64(lot.Capacity()))

	return ipl, nil
}

func vehicleAttributes(vehicle *Vehicle) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("vehicle.license_plate", vehicle.LicensePlate),
		attribute.String("vehicle.class", vehicle.Class.String()),
		attribute.String("vehicle.customer_class", vehicle.CustomerClass.String()),
	}
}

func (ipl *InstrumentedParkingLot) ValidateEntry(ctx context.Context, vehicle *Vehicle, wantsEV bool) (bool, string) {
	_, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.validate_entry",
		trace.WithAttributes(vehicleAttributes(vehicle)...),
		trace.WithAttributes(attribute.Bool("vehicle.wants_ev", wantsEV)))
	defer span.End()

	start := time.Now()
	ok, reason := ipl.ParkingLot.ValidateEntry(vehicle, wantsEV)

	status := "allowed"
	if !ok {
		status = "rejected"
		span.AddEvent("entry_rejected", trace.WithAttributes(attribute.String("reason", reason)))
	}
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "validate_entry"),
		attribute.String("status", status),
	))
	return ok, reason
}

// Enter validates and allocates atomically. Rejections come back as
// *EntryRejectedError, a full lot as ErrNoSlotAvailable.
func (ipl *InstrumentedParkingLot) Enter(ctx context.Context, vehicle *Vehicle, wantsEV bool) (Slot, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.enter",
		trace.WithAttributes(vehicleAttributes(vehicle)...),
		trace.WithAttributes(attribute.Bool("vehicle.wants_ev", wantsEV)))
	defer span.End()

	start := time.Now()
	span.AddEvent("finding_available_slot")

	slot, err := ipl.ParkingLot.Enter(vehicle, wantsEV)
	ipl.recordAllocation(ctx, span, "enter", vehicle, slot, err, time.Since(start))
	return slot, err
}

func (ipl *InstrumentedParkingLot) AllocateSlot(ctx context.Context, vehicle *Vehicle, wantsEV bool) (Slot, bool) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.allocate_slot",
		trace.WithAttributes(vehicleAttributes(vehicle)...),
		trace.WithAttributes(attribute.Bool("vehicle.wants_ev", wantsEV)))
	defer span.End()

	start := time.Now()
	span.AddEvent("finding_available_slot")

	slot, ok := ipl.ParkingLot.AllocateSlot(vehicle, wantsEV)
	var err error
	if !ok {
		err = ErrNoSlotAvailable
	}
	ipl.recordAllocation(ctx, span, "allocate", vehicle, slot, err, time.Since(start))
	return slot, ok
}

func (ipl *InstrumentedParkingLot) recordAllocation(ctx context.Context, span trace.Span, operation string, vehicle *Vehicle, slot Slot, err error, elapsed time.Duration) {
	labels := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("vehicle_class", vehicle.Class.String()),
		attribute.String("customer_class", vehicle.CustomerClass.String()),
	}

	switch {
	case err == nil:
		labels = append(labels,
			attribute.String("status", "success"),
			attribute.String("section", slot.Section.String()),
		)
		span.SetAttributes(
			attribute.String("slot.id", slot.ID),
			attribute.Int("slot.level", slot.Level),
			attribute.String("ticket.id", vehicle.TicketID),
		)
		span.AddEvent("slot_allocated", trace.WithAttributes(attribute.String("slot_id", slot.ID)))
		ipl.occupancyGauge.Add(ctx, 1)
		logging.Info(ctx, "slot allocated",
			"ticket", vehicle.TicketID,
			"slot_id", slot.ID,
			"license_plate", vehicle.LicensePlate,
			"re_entry_count", vehicle.ReEntryCount)
	case errors.Is(err, ErrNoSlotAvailable):
		labels = append(labels, attribute.String("status", "no_slot"))
		span.AddEvent("no_slot_available")
		logging.Warn(ctx, "no suitable slot available", "license_plate", vehicle.LicensePlate)
	case errors.Is(err, ErrEntryRejected):
		labels = append(labels, attribute.String("status", "rejected"))
		span.AddEvent("entry_rejected", trace.WithAttributes(attribute.String("reason", err.Error())))
		logging.Warn(ctx, "entry rejected", "license_plate", vehicle.LicensePlate, "reason", err.Error())
	default:
		labels = append(labels, attribute.String("status", "failed"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Error(ctx, "allocation failed", "error", err)
	}

	ipl.allocationOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ipl.operationDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(labels...))
}

func (ipl *InstrumentedParkingLot) ProcessExit(ctx context.Context, ticketID string) (ExitResult, error) {
	ctx, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.process_exit",
		trace.WithAttributes(attribute.String("ticket.id", ticketID)))
	defer span.End()

	start := time.Now()
	span.AddEvent("releasing_slot")

	result, err := ipl.ParkingLot.ProcessExit(ticketID)

	labels := []attribute.KeyValue{
		attribute.String("operation", "exit"),
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", "failed"))
		logging.Error(ctx, "exit processing failed", "ticket", ticketID, "error", err)
	case !result.Success:
		span.AddEvent("ticket_not_found")
		labels = append(labels, attribute.String("status", "not_found"))
		logging.Warn(ctx, "exit processing failed", "ticket", ticketID, "reason", result.Reason)
	default:
		total := result.Fee.TotalFee.InexactFloat64()
		labels = append(labels,
			attribute.String("status", "success"),
			attribute.Bool("overstay", result.Overstay),
			attribute.String("vehicle_class", result.Vehicle.Class.String()),
			attribute.String("customer_class", result.Vehicle.CustomerClass.String()),
		)
		span.SetAttributes(
			attribute.String("slot.id", result.Slot.ID),
			attribute.String("vehicle.license_plate", result.Vehicle.LicensePlate),
			attribute.String("fee.total", result.Fee.TotalFee.StringFixed(2)),
			attribute.Bool("overstay", result.Overstay),
			attribute.Int("warnings", result.Warnings),
		)
		span.AddEvent("slot_released")
		ipl.occupancyGauge.Add(ctx, -1)
		ipl.feeAmount.Record(ctx, total, metric.WithAttributes(
			attribute.String("vehicle_class", result.Vehicle.Class.String()),
		))
		if result.WarningIssued {
			ipl.warningsIssued.Add(ctx, 1)
			logging.Warn(ctx, "overstay warning issued",
				"license_plate", result.Vehicle.LicensePlate,
				"warnings", result.Warnings,
				"suspended", result.Suspended)
		}
		logging.Info(ctx, "slot released",
			"ticket", ticketID,
			"slot_id", result.Slot.ID,
			"total_fee", result.Fee.TotalFee.StringFixed(2),
			"hours", result.Fee.Duration.Hours())
	}

	ipl.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return result, err
}

func (ipl *InstrumentedParkingLot) OccupiedSlots(ctx context.Context) []Slot {
	_, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.occupied_slots")
	defer span.End()

	start := time.Now()
	occupied := ipl.ParkingLot.OccupiedSlots()

	span.SetAttributes(
		attribute.Int("occupied_slots_count", len(occupied)),
		attribute.Int("total_capacity", ipl.Capacity()),
	)
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "occupied_slots"),
		attribute.String("status", "success"),
	))
	return occupied
}

func (ipl *InstrumentedParkingLot) ExpiredSlots(ctx context.Context, now time.Time) ([]Slot, error) {
	_, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.expired_slots")
	defer span.End()

	start := time.Now()
	expired, err := ipl.ParkingLot.ExpiredSlots(now)

	status := "success"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("expired_slots_count", len(expired)))
	}
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "expired_slots"),
		attribute.String("status", status),
	))
	return expired, err
}

func (ipl *InstrumentedParkingLot) Snapshot(ctx context.Context, now time.Time) (LotSnapshot, error) {
	_, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.snapshot")
	defer span.End()

	start := time.Now()
	snap, err := ipl.ParkingLot.Snapshot(now)

	status := "success"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("occupied_slots_count", snap.Counters.Occupied),
			attribute.Int("expired_slots_count", snap.Counters.Expired),
		)
	}
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "snapshot"),
		attribute.String("status", status),
	))
	return snap, err
}

func (ipl *InstrumentedParkingLot) FindByPlate(ctx context.Context, plate string) (Slot, bool) {
	_, span := ipl.telemetry.Tracer().Start(ctx, "parking_lot.find_by_plate",
		trace.WithAttributes(attribute.String("vehicle.license_plate", plate)))
	defer span.End()

	slot, ok := ipl.ParkingLot.FindByPlate(plate)
	if !ok {
		span.AddEvent("vehicle_not_found")
	} else {
		span.AddEvent("vehicle_found", trace.WithAttributes(attribute.String("slot_id", slot.ID)))
	}
	return slot, ok
}
