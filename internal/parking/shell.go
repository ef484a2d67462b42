package parking

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Shell is the line-oriented operator console. Each input line runs as one
// traced command against the lot.
type Shell struct {
	lot       *InstrumentedParkingLot
	telemetry *TelemetryProvider
	scanner   *bufio.Scanner
	out       io.Writer
}

func NewShell(lot *InstrumentedParkingLot, telemetry *TelemetryProvider, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		lot:       lot,
		telemetry: telemetry,
		scanner:   bufio.NewScanner(in),
		out:       out,
	}
}

func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil && s.scanner.Scan() {
		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))

		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	switch command {
	case "park":
		s.handlePark(ctx, parts)
	case "leave":
		s.handleLeave(ctx, parts)
	case "status":
		s.handleStatus(ctx)
	case "expired":
		s.handleExpired(ctx)
	case "available":
		s.printf("Available slots: %d of %d\n", s.lot.AvailableCount(), s.lot.Capacity())
	case "find":
		s.handleFind(ctx, parts)
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		s.printf("Unknown command: %s\n", command)
	}
}

func (s *Shell) handlePark(ctx context.Context, parts []string) {
	_, span := s.telemetry.Tracer().Start(ctx, "shell.park_command")
	defer span.End()

	if len(parts) < 4 || len(parts) > 5 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: park <license_plate> <small|medium|large> <regular|vip> [ev]\n")
		return
	}

	class, err := ParseVehicleClass(parts[2])
	if err != nil {
		span.RecordError(err)
		s.printf("Invalid vehicle class: %s\n", parts[2])
		return
	}
	customer, err := ParseCustomerClass(parts[3])
	if err != nil {
		span.RecordError(err)
		s.printf("Invalid customer class: %s\n", parts[3])
		return
	}
	wantsEV := len(parts) == 5 && strings.EqualFold(parts[4], "ev")
	if len(parts) == 5 && !wantsEV {
		span.AddEvent("invalid_arguments")
		s.printf("Unknown option: %s\n", parts[4])
		return
	}

	vehicle := NewVehicle(parts[1], class, customer)
	slot, err := s.lot.Enter(ctx, vehicle, wantsEV)

	var rejected *EntryRejectedError
	switch {
	case errors.As(err, &rejected):
		span.AddEvent("entry_rejected")
		s.printf("Entry rejected: %s\n", rejected.Reason)
	case errors.Is(err, ErrNoSlotAvailable):
		span.AddEvent("parking_failed")
		s.printf("Sorry, no suitable slot available\n")
	case err != nil:
		span.RecordError(err)
		s.printf("Error: %s\n", err)
	default:
		span.AddEvent("parking_successful", trace.WithAttributes(
			attribute.String("allocated_slot", slot.ID),
		))
		s.printf("Allocated slot %s (level %d, %s section), ticket %s\n",
			slot.ID, slot.Level, slot.Section, vehicle.TicketID)
	}
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) {
	_, span := s.telemetry.Tracer().Start(ctx, "shell.leave_command")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: leave <ticket>\n")
		return
	}

	result, err := s.lot.ProcessExit(ctx, parts[1])
	if err != nil {
		span.RecordError(err)
		s.printf("Error: %s\n", err)
		return
	}
	if !result.Success {
		span.AddEvent("leave_failed")
		s.printf("Error: %s\n", result.Reason)
		return
	}

	span.AddEvent("leave_successful")
	symbol := s.lot.Policy().CurrencySymbol
	s.printf("Slot %s is free. Parked %.2f hours, total fee %s%s\n",
		result.Slot.ID, result.Fee.Duration.Hours(), symbol, result.Fee.TotalFee.StringFixed(2))
	if result.Overstay {
		s.printf("Overstay: %d hours over limit, warnings %d\n", result.Fee.PenaltyHours, result.Warnings)
	}
}

func (s *Shell) handleStatus(ctx context.Context) {
	_, span := s.telemetry.Tracer().Start(ctx, "shell.status_command")
	defer span.End()

	occupied := s.lot.OccupiedSlots(ctx)
	if len(occupied) == 0 {
		span.AddEvent("parking_lot_empty")
		s.printf("Parking lot is empty\n")
		return
	}

	span.SetAttributes(attribute.Int("occupied_slots_count", len(occupied)))
	s.printf("Slot\t\tTicket\t\tPlate\t\tClass\tCustomer\n")
	for _, slot := range occupied {
		v := slot.Occupancy.Vehicle
		s.printf("%s\t%s\t%s\t%s\t%s\n", slot.ID, v.TicketID, v.LicensePlate, v.Class, v.CustomerClass)
	}
}

func (s *Shell) handleExpired(ctx context.Context) {
	_, span := s.telemetry.Tracer().Start(ctx, "shell.expired_command")
	defer span.End()

	expired, err := s.lot.ExpiredSlots(ctx, s.lot.Now())
	if err != nil {
		span.RecordError(err)
		s.printf("Error: %s\n", err)
		return
	}
	if len(expired) == 0 {
		s.printf("No expired slots\n")
		return
	}
	for _, slot := range expired {
		s.printf("%s\t%s\tsince %s\n", slot.ID, slot.Occupancy.Vehicle.LicensePlate,
			slot.Occupancy.AllocatedAt.Format("2006-01-02 15:04:05"))
	}
}

func (s *Shell) handleFind(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: find <license_plate>\n")
		return
	}

	slot, ok := s.lot.FindByPlate(ctx, parts[1])
	if !ok {
		s.printf("Not found\n")
		return
	}
	s.printf("%s\n", slot.ID)
}
