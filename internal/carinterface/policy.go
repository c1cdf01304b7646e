package carinterface

import "github.com/banshee-data/ocelot/internal/vehicle"

// LongitudinalPolicy decides the final cruise enabled flag from a decoded
// state. It must be a pure function of its input.
type LongitudinalPolicy func(st vehicle.VehicleState) bool

// StockPolicy keeps whatever the cruise arbiter decided.
func StockPolicy(st vehicle.VehicleState) bool {
	return st.CruiseState.Enabled
}

// ATLPolicy returns the always-on-longitudinal policy. When atl is set and
// cruise is available, longitudinal control is engaged unless the car is in
// park or reverse, or a door or seatbelt is open.
func ATLPolicy(atl bool) LongitudinalPolicy {
	return func(st vehicle.VehicleState) bool {
		enabled := st.CruiseState.Enabled
		if !atl || !st.CruiseState.Available {
			return enabled
		}
		switch {
		case st.GearShifter == vehicle.GearReverse, st.GearShifter == vehicle.GearPark:
			return false
		case st.SeatbeltUnlatched, st.DoorOpen:
			return false
		}
		return true
	}
}
