package vehicle

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ocelot/internal/config"
	"github.com/banshee-data/ocelot/internal/units"
)

// fakeBus is a SignalReader keyed by "MESSAGE.SIGNAL".
type fakeBus map[string]float64

func (b fakeBus) Value(message, signal string) float64 {
	return b[message+"."+signal]
}

func (b fakeBus) wheels(mph ...float64) fakeBus {
	names := []string{"FL", "FR", "RL", "RR"}
	for i, n := range names {
		b["SMARTROADSTERWHEELSPEEDS.WHEELSPEED_"+n] = mph[i%len(mph)]
	}
	return b
}

type fakeLimits struct {
	mps   float64
	valid bool
}

func (f fakeLimits) LatestSpeedLimit() (float64, bool) { return f.mps, f.valid }

func roadster(t *testing.T) config.VariantConfig {
	t.Helper()
	vc, err := config.VariantConfigFor(config.DefaultTuningConfig())
	require.NoError(t, err)
	return vc
}

// healthy returns a primary bus with brake and steering reporting OK.
func healthy() fakeBus {
	return fakeBus{
		"BRAKE_STATUS.BRAKE_OK":      1,
		"STEERING_STATUS.STEERING_OK": 1,
	}
}

func TestDecodeWheelSpeedFusion(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	st := d.Decode(healthy(), fakeBus{}.wheels(10, 20, 30, 40), false)
	assert.InDelta(t, 25*units.MPHToMPS, st.VEgoRaw, 1e-9)
	assert.InDelta(t, 10*units.MPHToMPS, st.WheelSpeeds.FL, 1e-9)
	assert.InDelta(t, 40*units.MPHToMPS, st.WheelSpeeds.RR, 1e-9)
	assert.False(t, st.Standstill)
	// first sample after rest resets the filter onto the raw speed
	assert.InDelta(t, st.VEgoRaw, st.VEgo, 1e-9)
	assert.Equal(t, 0.0, st.AEgo)

	st = d.Decode(healthy(), fakeBus{}.wheels(0), false)
	assert.Equal(t, 0.0, st.VEgoRaw)
	assert.True(t, st.Standstill)
}

func TestDecodeStandstillEpsilon(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	// 0.002 mph is just under 0.001 m/s
	st := d.Decode(healthy(), fakeBus{}.wheels(0.002), false)
	assert.Less(t, st.VEgoRaw, 0.001)
	assert.True(t, st.Standstill)

	st = d.Decode(healthy(), fakeBus{}.wheels(0.01), false)
	assert.False(t, st.Standstill)
}

func TestDecodeBodyFields(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	body := fakeBus{
		"BODYCONTROL.LEFT_DOOR":    1,
		"BODYCONTROL.LEFT_SIGNAL":  1,
		"ABS.ESP_STATUS":           1,
		"GEAR_PACKET.GEAR":         3,
		"GEAR_PACKET.RPM":          2400,
	}.wheels(0)
	st := d.Decode(healthy(), body, false)

	assert.True(t, st.DoorOpen)
	assert.True(t, st.LeftBlinker)
	assert.False(t, st.RightBlinker)
	assert.True(t, st.EspDisabled)
	assert.Equal(t, GearDrive, st.GearShifter)
	assert.Equal(t, 2400.0, st.EngineRPM)
	assert.Equal(t, 2400.0, d.State().EngineRPM)
	assert.False(t, st.SeatbeltUnlatched)
	assert.False(t, st.StockAeb)
	assert.False(t, st.LeftBlindspot)
	assert.False(t, st.RightBlindspot)

	body["GEAR_PACKET.GEAR"] = 9
	st = d.Decode(healthy(), body, false)
	assert.Equal(t, GearUnknown, st.GearShifter)
}

func TestDecodeWithoutBodyBus(t *testing.T) {
	vc := roadster(t)
	vc.HasBodyBus = false
	d := NewDecoder(vc, nil)

	// body values are ignored entirely
	body := fakeBus{"BODYCONTROL.LEFT_DOOR": 1, "GEAR_PACKET.RPM": 3000}.wheels(30)
	st := d.Decode(healthy(), body, false)

	assert.False(t, st.DoorOpen)
	assert.Equal(t, WheelSpeeds{}, st.WheelSpeeds)
	assert.Equal(t, GearUnknown, st.GearShifter)
	assert.Equal(t, 0.0, st.EngineRPM)
	assert.True(t, st.Standstill)
}

func TestDecodeBrake(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	assert.True(t, d.State().BrakeUnavailable, "brake starts unavailable")

	primary := fakeBus{"BRAKE_STATUS.DRIVER_BRAKE_APPLIED": 1}
	st := d.Decode(primary, fakeBus{}, false)
	assert.True(t, st.BrakePressed)
	assert.False(t, st.BrakeLights)

	primary = fakeBus{"BRAKE_STATUS.BRAKE_APPLIED": 1}
	st = d.Decode(primary, fakeBus{}, false)
	assert.False(t, st.BrakePressed)
	assert.True(t, st.BrakeLights)
}

func TestBrakeUnavailableTracksCurrentCycle(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	for i := 0; i < 6; i++ {
		ok := float64(i % 2)
		st := d.Decode(fakeBus{"BRAKE_STATUS.BRAKE_OK": ok}, fakeBus{}, false)
		assert.Equal(t, ok == 0, st.BrakeUnavailable, "cycle %d", i)
		assert.Equal(t, ok == 0, d.State().BrakeUnavailable, "cycle %d", i)
	}
}

func TestDecodeGasInterceptor(t *testing.T) {
	tests := []struct {
		name        string
		ped1, ped2  float64
		wantGas     float64
		wantPressed bool
	}{
		{"at threshold", 10, 20, 15, false},
		{"above threshold", 10, 21, 15.5, true},
		{"released", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(roadster(t), nil)
			primary := healthy()
			primary["GAS_SENSOR.PED_GAS"] = tt.ped1
			primary["GAS_SENSOR.PED_GAS2"] = tt.ped2

			st := d.Decode(primary, fakeBus{}, false)
			assert.Equal(t, tt.wantGas, st.Gas)
			assert.Equal(t, tt.wantPressed, st.GasPressed)
		})
	}

	t.Run("not configured", func(t *testing.T) {
		vc := roadster(t)
		vc.HasGasInterceptor = false
		d := NewDecoder(vc, nil)
		st := d.Decode(fakeBus{"GAS_SENSOR.PED_GAS": 100, "GAS_SENSOR.PED_GAS2": 100}, fakeBus{}, false)
		assert.Equal(t, 0.0, st.Gas)
		assert.False(t, st.GasPressed)
	})
}

func TestDecodeSteering(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	primary := fakeBus{
		"TOYOTA_STEERING_ANGLE_SENSOR1.TOYOTA_STEER_ANGLE":    15,
		"TOYOTA_STEERING_ANGLE_SENSOR1.TOYOTA_STEER_FRACTION": 0.3,
		"TOYOTA_STEERING_ANGLE_SENSOR1.TOYOTA_STEER_RATE":     12,
		"STEERING_STATUS.STEERING_TORQUE_EPS":                 40,
		"STEERING_STATUS.STEERING_OK":                         1,
	}
	st := d.Decode(primary, fakeBus{}, false)
	assert.InDelta(t, -15.3, st.SteeringAngle, 1e-9)
	assert.Equal(t, -12.0, st.SteeringRate)
	assert.Equal(t, 40.0, st.SteeringTorqueEps)
	assert.False(t, st.SteerError)

	tests := []struct {
		torque float64
		want   bool
	}{
		{0, false},
		{100, false},
		{-100, false},
		{100.5, true},
		{-101, true},
	}
	for _, tt := range tests {
		primary["STEERING_STATUS.STEERING_TORQUE_DRIVER"] = tt.torque
		st := d.Decode(primary, fakeBus{}, false)
		assert.Equal(t, tt.torque, st.SteeringTorque)
		assert.Equal(t, tt.want, st.SteeringPressed, "torque %v", tt.torque)
	}
}

func TestSteerErrorHasNoMemory(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	for i, ok := range []float64{0, 1, 0, 0, 1, 1} {
		st := d.Decode(fakeBus{"STEERING_STATUS.STEERING_OK": ok}, fakeBus{}, false)
		assert.Equal(t, ok == 0, st.SteerError, "cycle %d", i)
	}
}

func press(primary fakeBus, buttons ...string) fakeBus {
	out := fakeBus{}
	for k, v := range primary {
		out[k] = v
	}
	for _, b := range buttons {
		out["HIM_CTRLS."+b] = 1
	}
	return out
}

func TestEnableSnapsTargetSpeedOnce(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	st := d.Decode(press(healthy(), "SET_BTN"), fakeBus{}.wheels(37), false)
	require.True(t, st.CruiseState.Enabled)
	assert.InDelta(t, 35*units.MPHToMPS, st.CruiseState.Speed, 1e-9)
	assert.True(t, st.CruiseState.Available)
	assert.False(t, st.CruiseState.NonAdaptive)
	assert.False(t, st.CruiseState.Standstill)

	// SET again at a different speed does not re-snap
	st = d.Decode(press(healthy(), "SET_BTN"), fakeBus{}.wheels(52), false)
	require.True(t, st.CruiseState.Enabled)
	assert.InDelta(t, 35*units.MPHToMPS, st.CruiseState.Speed, 1e-9)

	// stays enabled and keeps the target with no buttons held
	st = d.Decode(healthy(), fakeBus{}.wheels(52), false)
	assert.True(t, st.CruiseState.Enabled)
	assert.InDelta(t, 35*units.MPHToMPS, st.CruiseState.Speed, 1e-9)
}

func TestEndToEndEnableAtTwentyMph(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	require.False(t, d.State().EnabledPrevious)

	st := d.Decode(press(healthy(), "SET_BTN"), fakeBus{}.wheels(20, 20, 20, 20), false)
	assert.True(t, st.CruiseState.Enabled)
	assert.InDelta(t, 20*units.MPHToMPS, st.CruiseState.Speed, 1e-9)
	assert.True(t, d.State().EnabledPrevious)
}

func TestSpeedButtonsAdjustTarget(t *testing.T) {
	step := 5 * units.MPHToMPS
	tests := []struct {
		name    string
		buttons []string
		delta   float64
	}{
		{"accelerate", []string{"SPEEDUP_BTN"}, step},
		{"decelerate", []string{"SPEEDDN_BTN"}, -step},
		{"both cancel out", []string{"SPEEDUP_BTN", "SPEEDDN_BTN"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(roadster(t), nil)
			body := fakeBus{}.wheels(40)
			st := d.Decode(press(healthy(), "SET_BTN"), body, false)
			start := st.CruiseState.Speed

			st = d.Decode(press(healthy(), tt.buttons...), body, false)
			assert.InDelta(t, start+tt.delta, st.CruiseState.Speed, 1e-9)

			// the adjustment repeats for every cycle the button is held
			st = d.Decode(press(healthy(), tt.buttons...), body, false)
			assert.InDelta(t, start+2*tt.delta, st.CruiseState.Speed, 1e-9)
		})
	}
}

func TestSpeedButtonsIgnoredWhileDisabled(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	st := d.Decode(press(healthy(), "SPEEDUP_BTN"), fakeBus{}.wheels(40), false)
	assert.False(t, st.CruiseState.Enabled)
	assert.Equal(t, 0.0, st.CruiseState.Speed)
}

func TestCancelDoesNotDisable(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	d.Decode(press(healthy(), "SET_BTN"), fakeBus{}.wheels(30), false)

	st := d.Decode(press(healthy(), "CANCEL_BTN"), fakeBus{}.wheels(30), false)
	assert.True(t, st.CruiseState.Enabled)
	assert.True(t, d.State().Buttons.Pressed(Cancel))
}

func TestControlEnabledFallingEdgeDisables(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	body := fakeBus{}.wheels(30)

	st := d.Decode(press(healthy(), "SET_BTN"), body, true)
	require.True(t, st.CruiseState.Enabled)
	st = d.Decode(healthy(), body, true)
	require.True(t, st.CruiseState.Enabled)

	st = d.Decode(healthy(), body, false)
	assert.False(t, st.CruiseState.Enabled)
	assert.False(t, d.State().EnabledPrevious)

	// a hint that stays low does not keep disabling
	st = d.Decode(press(healthy(), "SET_BTN"), fakeBus{}.wheels(47), false)
	assert.True(t, st.CruiseState.Enabled)
	assert.InDelta(t, 45*units.MPHToMPS, st.CruiseState.Speed, 1e-9, "re-enable snaps again")
}

func TestButtonStateSnapshot(t *testing.T) {
	d := NewDecoder(roadster(t), nil)

	d.Decode(press(healthy(), "SPEEDUP_BTN", "CANCEL_BTN"), fakeBus{}, false)
	events := d.State().Buttons.Events()
	want := []ButtonEvent{
		{Type: AccelCruise, Pressed: true},
		{Type: DecelCruise, Pressed: false},
		{Type: Cancel, Pressed: true},
		{Type: SetCruise, Pressed: false},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("button events mismatch (-want +got):\n%s", diff)
	}

	// released buttons overwrite the snapshot
	d.Decode(healthy(), fakeBus{}, false)
	assert.Equal(t, ButtonStateMap{}, d.State().Buttons)
}

func TestDecodeMapSpeedLimit(t *testing.T) {
	d := NewDecoder(roadster(t), fakeLimits{mps: 13.4, valid: true})
	st := d.Decode(healthy(), fakeBus{}, false)
	assert.Equal(t, 13.4, st.MapSpeedLimit)
	assert.True(t, st.MapSpeedLimitValid)
	assert.Equal(t, 13.4, d.State().SmartSpeed)

	d = NewDecoder(roadster(t), nil)
	st = d.Decode(healthy(), fakeBus{}, false)
	assert.False(t, st.MapSpeedLimitValid)
}

func TestDecodeIsIdempotentWithoutInputChanges(t *testing.T) {
	primary := healthy()
	primary["STEERING_STATUS.STEERING_TORQUE_DRIVER"] = 20
	primary["GAS_SENSOR.PED_GAS"] = 4
	primary["GAS_SENSOR.PED_GAS2"] = 6
	body := fakeBus{"GEAR_PACKET.GEAR": 0}.wheels(0)

	d := NewDecoder(roadster(t), nil)
	first := d.Decode(primary, body, false)
	second := d.Decode(primary, body, false)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated decode changed state (-first +second):\n%s", diff)
	}

	// two fresh decoders agree at any speed
	a := NewDecoder(roadster(t), nil).Decode(primary, fakeBus{}.wheels(33), false)
	b := NewDecoder(roadster(t), nil).Decode(primary, fakeBus{}.wheels(33), false)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("fresh decoders disagree (-a +b):\n%s", diff)
	}
}

func TestDecodeRejectsInvalidWheelSpeeds(t *testing.T) {
	d := NewDecoder(roadster(t), nil)
	body := fakeBus{}.wheels(math.NaN(), -5, math.Inf(1), 8)
	st := d.Decode(healthy(), body, false)
	assert.InDelta(t, 2*units.MPHToMPS, st.VEgoRaw, 1e-9)
	assert.False(t, math.IsNaN(st.VEgo))
}
