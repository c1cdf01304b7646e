package carinterface

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/ocelot/internal/vehicle"
)

func baseState() vehicle.VehicleState {
	return vehicle.VehicleState{
		GearShifter: vehicle.GearDrive,
		CanValid:    true,
		CruiseState: vehicle.CruiseState{Available: true, Enabled: true},
	}
}

func TestCommonEvents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cur *vehicle.VehicleState, prev *Snapshot)
		want   []vehicle.EventName
		absent []vehicle.EventName
	}{
		{
			name:   "healthy and engaged",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {},
			absent: []vehicle.EventName{EventPcmEnable, EventPcmDisable, EventWrongGear, EventCanError},
		},
		{
			name: "enable edge",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				prev.CruiseEnabledPrev = false
			},
			want: []vehicle.EventName{EventPcmEnable},
		},
		{
			name: "disabled every cycle",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.CruiseState.Enabled = false
				prev.CruiseEnabledPrev = false
			},
			want: []vehicle.EventName{EventPcmDisable},
		},
		{
			name: "reverse",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.GearShifter = vehicle.GearReverse
			},
			want: []vehicle.EventName{EventWrongGear, EventReverseGear},
		},
		{
			name: "unknown gear",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.GearShifter = vehicle.GearUnknown
			},
			want:   []vehicle.EventName{EventWrongGear},
			absent: []vehicle.EventName{EventReverseGear},
		},
		{
			name: "gas rising edge",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.GasPressed = true
			},
			want: []vehicle.EventName{EventGasPressed, EventPedalPressed},
		},
		{
			name: "gas held",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.GasPressed = true
				prev.GasPressedPrev = true
			},
			want:   []vehicle.EventName{EventGasPressed},
			absent: []vehicle.EventName{EventPedalPressed},
		},
		{
			name: "brake held at standstill",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.BrakePressed, prev.BrakePressedPrev = true, true
				cur.Standstill = true
			},
			absent: []vehicle.EventName{EventPedalPressed},
		},
		{
			name: "brake held while moving",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.BrakePressed, prev.BrakePressedPrev = true, true
			},
			want: []vehicle.EventName{EventPedalPressed},
		},
		{
			name: "faults",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.SteerError = true
				cur.BrakeUnavailable = true
				cur.EspDisabled = true
				cur.DoorOpen = true
				cur.CanValid = false
			},
			want: []vehicle.EventName{EventSteerUnavailable, EventBrakeUnavailable, EventEspDisabled, EventDoorOpen, EventCanError},
		},
		{
			name: "too fast",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.VEgo = MaxControlSpeed + 1
			},
			want: []vehicle.EventName{EventSpeedTooHigh},
		},
		{
			name: "cruise unavailable",
			mutate: func(cur *vehicle.VehicleState, prev *Snapshot) {
				cur.CruiseState.Available = false
			},
			want: []vehicle.EventName{EventWrongCarMode},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, prev := baseState(), Snapshot{CruiseEnabledPrev: true}
			tt.mutate(&cur, &prev)
			got := CommonEvents{}.Classify(cur, prev)
			for _, e := range tt.want {
				assert.Contains(t, got, e)
			}
			for _, e := range tt.absent {
				assert.NotContains(t, got, e)
			}
		})
	}
}

func TestCommonEventsExtraGears(t *testing.T) {
	cur := baseState()
	cur.GearShifter = vehicle.GearSport

	assert.Contains(t, CommonEvents{}.Classify(cur, Snapshot{}), EventWrongGear)
	assert.NotContains(t, CommonEvents{ExtraGears: []vehicle.GearShifter{vehicle.GearSport}}.Classify(cur, Snapshot{}), EventWrongGear)
}

func TestEventClassifierFunc(t *testing.T) {
	var c EventClassifier = EventClassifierFunc(func(cur vehicle.VehicleState, prev Snapshot) []vehicle.EventName {
		return []vehicle.EventName{"custom"}
	})
	assert.Equal(t, []vehicle.EventName{"custom"}, c.Classify(vehicle.VehicleState{}, Snapshot{}))
}

func TestATLPolicy(t *testing.T) {
	tests := []struct {
		name   string
		atl    bool
		mutate func(*vehicle.VehicleState)
		want   bool
	}{
		{"off passes through disabled", false, func(s *vehicle.VehicleState) { s.CruiseState.Enabled = false }, false},
		{"off passes through enabled", false, func(s *vehicle.VehicleState) {}, true},
		{"on engages", true, func(s *vehicle.VehicleState) { s.CruiseState.Enabled = false }, true},
		{"on but unavailable", true, func(s *vehicle.VehicleState) {
			s.CruiseState.Enabled = false
			s.CruiseState.Available = false
		}, false},
		{"park blocks", true, func(s *vehicle.VehicleState) { s.GearShifter = vehicle.GearPark }, false},
		{"reverse blocks", true, func(s *vehicle.VehicleState) { s.GearShifter = vehicle.GearReverse }, false},
		{"door blocks", true, func(s *vehicle.VehicleState) { s.DoorOpen = true }, false},
		{"seatbelt blocks", true, func(s *vehicle.VehicleState) { s.SeatbeltUnlatched = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := baseState()
			tt.mutate(&st)
			assert.Equal(t, tt.want, ATLPolicy(tt.atl)(st))
		})
	}

	st := baseState()
	assert.True(t, StockPolicy(st))
	st.CruiseState.Enabled = false
	assert.False(t, StockPolicy(st))
}
