package carinterface

import (
	"github.com/banshee-data/ocelot/internal/units"
	"github.com/banshee-data/ocelot/internal/vehicle"
)

// Safety events raised by CommonEvents.
const (
	EventDoorOpen           vehicle.EventName = "doorOpen"
	EventSeatbeltNotLatched vehicle.EventName = "seatbeltNotLatched"
	EventWrongGear          vehicle.EventName = "wrongGear"
	EventReverseGear        vehicle.EventName = "reverseGear"
	EventWrongCarMode       vehicle.EventName = "wrongCarMode"
	EventEspDisabled        vehicle.EventName = "espDisabled"
	EventGasPressed         vehicle.EventName = "gasPressed"
	EventStockAeb           vehicle.EventName = "stockAeb"
	EventSpeedTooHigh       vehicle.EventName = "speedTooHigh"
	EventWrongCruiseMode    vehicle.EventName = "wrongCruiseMode"
	EventSteerUnavailable   vehicle.EventName = "steerUnavailable"
	EventBrakeUnavailable   vehicle.EventName = "brakeUnavailable"
	EventPedalPressed       vehicle.EventName = "pedalPressed"
	EventPcmEnable          vehicle.EventName = "pcmEnable"
	EventPcmDisable         vehicle.EventName = "pcmDisable"
	EventCanError           vehicle.EventName = "canError"
)

// MaxControlSpeed is the highest speed at which control may stay engaged
// (148 km/h).
var MaxControlSpeed = 148 * units.KPHToMPS

// EventClassifier derives safety events from the current state and the
// flags snapshotted at the end of the previous cycle.
type EventClassifier interface {
	Classify(cur vehicle.VehicleState, prev Snapshot) []vehicle.EventName
}

// EventClassifierFunc adapts a function to EventClassifier.
type EventClassifierFunc func(cur vehicle.VehicleState, prev Snapshot) []vehicle.EventName

func (f EventClassifierFunc) Classify(cur vehicle.VehicleState, prev Snapshot) []vehicle.EventName {
	return f(cur, prev)
}

// CommonEvents is the default classifier. ExtraGears lists gears other than
// drive that do not raise wrongGear.
type CommonEvents struct {
	ExtraGears []vehicle.GearShifter
}

func (c CommonEvents) allowedGear(g vehicle.GearShifter) bool {
	if g == vehicle.GearDrive {
		return true
	}
	for _, eg := range c.ExtraGears {
		if g == eg {
			return true
		}
	}
	return false
}

// Classify implements EventClassifier.
func (c CommonEvents) Classify(cur vehicle.VehicleState, prev Snapshot) []vehicle.EventName {
	var events []vehicle.EventName
	add := func(e vehicle.EventName) { events = append(events, e) }

	if cur.DoorOpen {
		add(EventDoorOpen)
	}
	if cur.SeatbeltUnlatched {
		add(EventSeatbeltNotLatched)
	}
	if !c.allowedGear(cur.GearShifter) {
		add(EventWrongGear)
	}
	if cur.GearShifter == vehicle.GearReverse {
		add(EventReverseGear)
	}
	if !cur.CruiseState.Available {
		add(EventWrongCarMode)
	}
	if cur.EspDisabled {
		add(EventEspDisabled)
	}
	if cur.GasPressed {
		add(EventGasPressed)
	}
	if cur.StockAeb {
		add(EventStockAeb)
	}
	if cur.VEgo > MaxControlSpeed {
		add(EventSpeedTooHigh)
	}
	if cur.CruiseState.NonAdaptive {
		add(EventWrongCruiseMode)
	}
	if cur.SteerError {
		add(EventSteerUnavailable)
	}
	if cur.BrakeUnavailable {
		add(EventBrakeUnavailable)
	}

	// rising edge of gas, or brake pressed while moving or newly pressed
	if (cur.GasPressed && !prev.GasPressedPrev) ||
		(cur.BrakePressed && (!prev.BrakePressedPrev || !cur.Standstill)) {
		add(EventPedalPressed)
	}

	if cur.CruiseState.Enabled && !prev.CruiseEnabledPrev {
		add(EventPcmEnable)
	} else if !cur.CruiseState.Enabled {
		add(EventPcmDisable)
	}

	if !cur.CanValid {
		add(EventCanError)
	}
	return events
}
